// Package covstore persists line coverage in a store.IStore.
//
// Every (namespace, type, file) is stored as one JSON encoded coverage.Record under the key
//
//	coverband_3_3.<namespace>.<type>.<canonical path>
//
// for example "coverband_3_3.coverband_test.runtime../dog.rb". The format is shared with
// existing deployments and must not change.
//
// Saving a report merges each file independently (see coverage.Merge). A merge is a single
// read-modify-write of one key. By default it is applied with IStore.CompareAndSwap and
// retried when another writer changed the record in the meantime. With WithRecordLocks the
// read-modify-write is guarded by a per-record lock from the lockmgr package instead. Both
// modes never block writers of other files.
//
// Paths are stored as given. The store resolves paths itself only when a resolver is set
// with WithPathResolver. SaveReport then validates every reported array before it merges
// arrays whose paths resolve to the same canonical path, and ClearFile resolves its argument.
//
// When a TTL is configured every save resets the expiration of the written key. Expired
// records read as absent.
//
// Clear and ClearFile are not atomic with concurrent saves: a save racing a clear may
// write its record back after the clear (last operation wins). This is accepted.
//
// Errors of the key-value store match ErrStoreUnavailable, invalid line values match
// coverage.ErrMalformedInput. Reads of types without records return empty maps.
//
// Usage Example:
//
//	kv := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
//	s, err := covstore.New(kv, covstore.WithNamespace("shop"), covstore.WithTTL(3600))
//
//	err = s.SaveReport(map[string][]coverage.Line{"./dog.rb": coverage.Lines(0, -1, 2)})
//	report, err := s.GetCoverageReport()
package covstore
