package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueryRecord is the audit entry for one routed query.
type QueryRecord struct {
	ID        uuid.UUID  `json:"id"`
	Query     string     `json:"query"`
	Kind      string     `json:"kind"`
	Spec      FilterSpec `json:"spec"`
	Total     int        `json:"total"`
	Shown     int        `json:"shown"`
	EventIDs  []string   `json:"event_ids,omitempty"`
	HandledAt time.Time  `json:"handled_at"`
}

// NewQueryRecord builds a record for a query answered with result, stamped
// with a fresh random ID.
func NewQueryRecord(query, kind string, result FilteredResult, at time.Time) QueryRecord {
	ids := make([]string, len(result.Events))
	for i, e := range result.Events {
		ids[i] = e.ID
	}
	return QueryRecord{
		ID:        uuid.New(),
		Query:     query,
		Kind:      kind,
		Spec:      result.Spec,
		Total:     result.Total,
		Shown:     result.Shown(),
		EventIDs:  ids,
		HandledAt: at.UTC(),
	}
}

// QueryRecorder persists query records. Implementations must be safe for
// concurrent use.
type QueryRecorder interface {
	RecordQuery(ctx context.Context, rec QueryRecord) error
}
