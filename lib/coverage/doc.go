// Package coverage implements the merge engine for line coverage data.
//
// A report maps canonical file paths ("./app/models/dog.rb") to one Line per source
// line. A Line is either a hit count or the NoData marker for lines without coverage
// semantics (blank lines, comments). NoData is not zero: it means "no information".
//
// Merging two line arrays is done position by position:
//
//	NoData + NoData = NoData
//	NoData + n      = n
//	n      + m      = n + m
//
// The shorter array is padded with NoData at its tail, so no position is ever dropped.
// The operation is associative and commutative, which allows concurrent writers to
// fold their reports into a shared record in any order.
//
// A Record wraps the merged lines together with the unix seconds of the first and the
// most recent save. Merge applies an incoming array to a (possibly absent) record,
// MergeRecords folds two stored records, e.g. of different coverage types.
//
// The package performs no I/O. Persistence is done by the covstore package.
package coverage
