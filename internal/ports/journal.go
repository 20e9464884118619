package ports

import "time"

type JobID uint64

// JobRecord is one issued data request.
type JobRecord struct {
	RunID      string    `json:"run_id"`
	Key        string    `json:"key"`
	ThreddsURL string    `json:"thredds_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type Journal interface {
	Append(rec JobRecord) (JobID, error)
	Iterate(from JobID, fn func(id JobID, rec JobRecord, committed bool) error) error
	Commit(id JobID) error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	Pending        int
	LatestAppended JobID
	SizeBytes      int64
}
