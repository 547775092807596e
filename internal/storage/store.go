// Package storage implements the persistence contracts consumed by the
// recognition core: idempotent attendance writes, identity lookup and the
// today-report query, plus template mirroring and snapshot archival.
package storage

import (
	"context"
	"time"

	"github.com/your-org/attend/internal/models"
)

// Store is the narrow persistence contract the rest of the service
// depends on. PostgresStore is the production implementation;
// MemoryStore backs tests and database-less runs.
type Store interface {
	// RecordIfAbsent writes an attendance record unless one already
	// exists for (identityID, date). Returns true only when a new
	// record was created. Atomic: two calls never both report creation.
	RecordIfAbsent(ctx context.Context, identityID, date string, checkIn time.Time) (bool, error)

	// LookupIdentity returns nil without error when the id is unknown.
	LookupIdentity(ctx context.Context, identityID string) (*models.Identity, error)

	CreateIdentity(ctx context.Context, ident *models.Identity) error
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	SetIdentityActive(ctx context.Context, identityID string, active bool) (bool, error)

	// TodayRecords returns all attendance records for the given date.
	TodayRecords(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	History(ctx context.Context, identityID string, from, to string, limit int) ([]models.AttendanceRecord, error)

	Ping(ctx context.Context) error
}
