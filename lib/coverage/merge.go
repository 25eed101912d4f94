package coverage

import (
	"math"
	"time"
)

// MergeLines combines two line arrays position by position.
// Counts are summed (saturating at math.MaxInt64), NoData yields to a count and the
// shorter array is padded with NoData.
// Neither input is modified.
func MergeLines(a, b []Line) []Line {
	if len(a) < len(b) {
		a, b = b, a
	}
	merged := make([]Line, len(a))
	copy(merged, a)
	for i, l := range b {
		switch {
		case l.IsNoData():
		case merged[i].IsNoData():
			merged[i] = l
		case merged[i] > math.MaxInt64-l:
			merged[i] = math.MaxInt64
		default:
			merged[i] += l
		}
	}
	return merged
}

// Merge applies an incoming line array to the existing record of a file.
// A nil existing record creates a new one that was first and last updated at now.
func Merge(existing *Record, incoming []Line, now time.Time) (Record, error) {
	if err := Validate(incoming); err != nil {
		return Record{}, err
	}

	ts := now.Unix()
	if existing == nil {
		return Record{
			FirstUpdatedAt: ts,
			LastUpdatedAt:  ts,
			Data:           append(make([]Line, 0, len(incoming)), incoming...),
		}, nil
	}

	if err := Validate(existing.Data); err != nil {
		return Record{}, err
	}
	return Record{
		FirstUpdatedAt: existing.FirstUpdatedAt,
		LastUpdatedAt:  ts,
		Data:           MergeLines(existing.Data, incoming),
	}, nil
}

// MergeRecords folds two stored records into one, keeping the earliest first and the
// latest last update.
func MergeRecords(a, b Record) Record {
	merged := Record{
		FirstUpdatedAt: min(a.FirstUpdatedAt, b.FirstUpdatedAt),
		LastUpdatedAt:  max(a.LastUpdatedAt, b.LastUpdatedAt),
		Data:           MergeLines(a.Data, b.Data),
	}
	return merged
}

// MergeReports folds reports (path to record) of several types into a single view
func MergeReports(reports ...map[string]Record) map[string]Record {
	merged := make(map[string]Record)
	for _, report := range reports {
		for path, record := range report {
			if existing, ok := merged[path]; ok {
				merged[path] = MergeRecords(existing, record)
			} else {
				merged[path] = record.Clone()
			}
		}
	}
	return merged
}
