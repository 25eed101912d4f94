package coverage

import "time"

// Record is the stored coverage of a single file for a single type
type Record struct {
	FirstUpdatedAt int64  `json:"first_updated_at"` // unix seconds of the first save
	LastUpdatedAt  int64  `json:"last_updated_at"`  // unix seconds of the latest save
	Data           []Line `json:"data"`
}

// FirstUpdated returns FirstUpdatedAt as time
func (r Record) FirstUpdated() time.Time {
	return time.Unix(r.FirstUpdatedAt, 0)
}

// LastUpdated returns LastUpdatedAt as time
func (r Record) LastUpdated() time.Time {
	return time.Unix(r.LastUpdatedAt, 0)
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	r.Data = append([]Line(nil), r.Data...)
	return r
}

// Covered returns the number of relevant lines and the number of lines hit at least once
func (r Record) Covered() (relevant, hit int) {
	for _, l := range r.Data {
		if l.IsNoData() {
			continue
		}
		relevant++
		if l > 0 {
			hit++
		}
	}
	return relevant, hit
}
