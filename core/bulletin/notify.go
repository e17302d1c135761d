package bulletin

import "context"

// Notification announces that a bulletin was sent.
type Notification struct {
	BulletinID       string    `json:"bulletin_id"`
	StudentID        string    `json:"student_id"`
	ClassID          string    `json:"class_id"`
	TermID           string    `json:"term_id"`
	AcademicYearID   string    `json:"academic_year_id"`
	GeneralAverage   *float64  `json:"general_average"`
	ClassRank        int       `json:"class_rank,omitempty"`
	ClassSize        int       `json:"class_size,omitempty"`
	TrackingNumber   string    `json:"tracking_number"`
	VerificationCode string    `json:"verification_code"`
	SentBy           string    `json:"sent_by"`
	Snapshot         *Bulletin `json:"snapshot,omitempty"`
}

func NewNotification(b Bulletin) Notification {
	snapshot := b
	return Notification{
		BulletinID:       b.ID,
		StudentID:        b.StudentID,
		ClassID:          b.ClassID,
		TermID:           b.TermID,
		AcademicYearID:   b.AcademicYearID,
		GeneralAverage:   b.GeneralAverage,
		ClassRank:        b.ClassRank,
		ClassSize:        b.TotalStudentsInClass,
		TrackingNumber:   b.TrackingNumber,
		VerificationCode: b.VerificationCode,
		SentBy:           b.SentBy,
		Snapshot:         &snapshot,
	}
}

// Notifier hands a sent bulletin over to the delivery channels (parents, archive).
// Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// GuardianFinder lists the guardians of a student.
type GuardianFinder interface {
	GuardiansOf(ctx context.Context, studentID string) ([]Guardian, error)
}

// GuardianRepository stores the guardians of students.
type GuardianRepository interface {
	GuardianFinder
	AddGuardian(ctx context.Context, g Guardian) (Guardian, error)
}
