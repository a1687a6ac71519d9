package listing

import (
	"fmt"
	"time"
)

// Candidate is one listing block reported by the extraction backend.
type Candidate struct {
	RawID  string `json:"id"`
	Status string `json:"status"`
}

// Finding is a Candidate confirmed to be absent from history.
type Finding struct {
	RawID      string    `json:"id"`
	Status     string    `json:"status"`
	Key        string    `json:"key"`
	TargetURL  string    `json:"target_url"`
	DetectedAt time.Time `json:"detected_at"`
}

// Promote builds the Finding for a candidate that normalized to key.
func (c Candidate) Promote(key, targetURL string, at time.Time) Finding {
	return Finding{
		RawID:      c.RawID,
		Status:     c.Status,
		Key:        key,
		TargetURL:  targetURL,
		DetectedAt: at,
	}
}

// Summary renders the finding as "<id> [<status>]".
func (f Finding) Summary() string {
	return fmt.Sprintf("%s [%s]", f.RawID, f.Status)
}
