package ports

import (
	"context"

	"edupulse/domain/core"
	"edupulse/domain/student"
)

// RecordProvider supplies student records to the analytics engine.
// The engine never fetches or caches records itself; it consumes whatever
// batch the provider hands over.
type RecordProvider interface {
	// Records returns the full batch for analysis.
	Records(ctx context.Context) ([]student.Record, error)

	// Record returns a single student record by id.
	Record(ctx context.Context, id core.StudentID) (student.Record, error)
}
