package bulletin

import (
	"context"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

// Repository persists bulletins, their grades and their audit logs.
//
// Transition and SaveGrades are compare-and-set writes: they only succeed when the stored version
// still equals the bulletin's Version, bump it by one and fail with ErrConflict otherwise.
type Repository interface {
	// Create fails with ErrExists when a bulletin exists for the same student, class, term and year.
	Create(ctx context.Context, b Bulletin) (Bulletin, error)
	GetByID(ctx context.Context, id string) (Bulletin, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (Bulletin, error)
	GetByVerificationCode(ctx context.Context, code string) (Bulletin, error)
	// Query returns the bulletins matching all the set filter fields, without their grades.
	Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.DBPage) ([]Bulletin, error)
	Approvals(ctx context.Context, bulletinID string) ([]Approval, error)

	// Transition writes the workflow fields of b and appends the audit row atomically.
	// It fails with ErrDuplicateCode when an issued code already belongs to another bulletin.
	Transition(ctx context.Context, b Bulletin, a Approval) (Bulletin, error)
	// SaveGrades replaces the grades of b and writes its summary.
	SaveGrades(ctx context.Context, b Bulletin) (Bulletin, error)
	// RecomputeRanks ranks the bulletins of a class and writes the class rank and class size of those not
	// yet sent (see RanksToUpdate). Reading and writing happen as one unit: concurrent calls for the same
	// class are serialized. It does not bump versions.
	RecomputeRanks(ctx context.Context, key ClassKey) error

	// RecordVerification appends a verification attempt. For a successful attempt it marks the bulletin
	// verified by a parent unless it already was, and reports whether this was the first success.
	RecordVerification(ctx context.Context, v Verification) (bool, error)
}
