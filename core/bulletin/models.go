package bulletin

import (
	"time"
)

// Status of a bulletin in the approval workflow.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSent     Status = "sent"
)

var AllStatuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSent}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Verifiable reports whether a parent may verify a bulletin in this status.
func (s Status) Verifiable() bool {
	return s == StatusApproved || s == StatusSent
}

type Bulletin struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	ClassID        string `json:"class_id"`
	TermID         string `json:"term_id"`
	AcademicYearID string `json:"academic_year_id"`
	SchoolID       string `json:"school_id"`
	Status         Status `json:"status"`

	SubmittedBy       string    `json:"submitted_by,omitempty"`
	ApprovedBy        string    `json:"approved_by,omitempty"`
	RejectedBy        string    `json:"rejected_by,omitempty"`
	SentBy            string    `json:"sent_by,omitempty"`
	SubmissionComment string    `json:"submission_comment,omitempty"`
	ApprovalComment   string    `json:"approval_comment,omitempty"`
	RejectionComment  string    `json:"rejection_comment,omitempty"`
	SubmittedAt       time.Time `json:"submitted_at"` // UTC
	ApprovedAt        time.Time `json:"approved_at"`  // UTC
	RejectedAt        time.Time `json:"rejected_at"`  // UTC
	SentAt            time.Time `json:"sent_at"`      // UTC

	TotalPoints          float64  `json:"total_points"`
	TotalCoefficients    float64  `json:"total_coefficients"`
	GeneralAverage       *float64 `json:"general_average"`
	ClassRank            int      `json:"class_rank,omitempty"`
	TotalStudentsInClass int      `json:"total_students_in_class,omitempty"`

	TrackingNumber   string    `json:"tracking_number,omitempty"`
	QRCode           string    `json:"qr_code,omitempty"`
	VerificationCode string    `json:"verification_code,omitempty"`
	SecurityHash     string    `json:"security_hash,omitempty"`
	ParentVerified   bool      `json:"parent_verified"`
	ParentVerifiedAt time.Time `json:"parent_verified_at"` // UTC

	TeacherComments  string `json:"teacher_comments,omitempty"`
	DirectorComments string `json:"director_comments,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	Grades []Grade `json:"grades,omitempty"`
}

// ClassKey identifies the bulletins of one class for one term.
func (b Bulletin) ClassKey() ClassKey {
	return ClassKey{ClassID: b.ClassID, TermID: b.TermID, AcademicYearID: b.AcademicYearID}
}

type ClassKey struct {
	ClassID        string `json:"class_id" query:"class_id" validate:"required"`
	TermID         string `json:"term_id" query:"term_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" query:"academic_year_id" validate:"required"`
}

type Grade struct {
	ID             string    `json:"id"`
	BulletinID     string    `json:"bulletin_id"`
	SubjectID      string    `json:"subject_id"`
	TeacherID      string    `json:"teacher_id,omitempty"`
	Grade          float64   `json:"grade"`
	Coefficient    float64   `json:"coefficient"`
	Points         float64   `json:"points"`
	Participation  *float64  `json:"participation,omitempty"`
	Homework       *float64  `json:"homework,omitempty"`
	Tests          *float64  `json:"tests,omitempty"`
	TeacherComment string    `json:"teacher_comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Approval is one row of the append-only audit log of a bulletin.
type Approval struct {
	ID             string    `json:"id"`
	BulletinID     string    `json:"bulletin_id"`
	UserID         string    `json:"user_id"`
	Action         string    `json:"action"` // submitted | approved | rejected | sent
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Comment        string    `json:"comment,omitempty"`
	Timestamp      time.Time `json:"timestamp"` // UTC
}

type VerificationType string

const (
	VerificationQRScan    VerificationType = "qr_scan"
	VerificationCodeEntry VerificationType = "code_entry"
)

// Verification is one parent verification attempt.
type Verification struct {
	ID               string           `json:"id"`
	BulletinID       string           `json:"bulletin_id,omitempty"`
	ParentID         string           `json:"parent_id"`
	Type             VerificationType `json:"verification_type"`
	VerificationCode string           `json:"verification_code"`
	IPAddress        string           `json:"ip_address,omitempty"`
	UserAgent        string           `json:"user_agent,omitempty"`
	Success          bool             `json:"success"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	Timestamp        time.Time        `json:"timestamp"` // UTC
}

// Guardian is a parent or tutor to be notified about a student's bulletins.
type Guardian struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Language  string `json:"language"` // fr | en
}

// NewBulletin contains information needed to create a draft Bulletin.
type NewBulletin struct {
	StudentID        string       `json:"student_id" validate:"required,notblank"`
	ClassID          string       `json:"class_id" validate:"required,notblank"`
	TermID           string       `json:"term_id" validate:"required,notblank"`
	AcademicYearID   string       `json:"academic_year_id" validate:"required,notblank"`
	SchoolID         string       `json:"school_id"`
	TeacherComments  string       `json:"teacher_comments" validate:"max=1000"`
	Grades           []GradeInput `json:"grades" validate:"dive"`
	DirectorComments string       `json:"-"`
}

// GradeInput defines what information may be provided to set the grade of a subject.
type GradeInput struct {
	SubjectID      string   `json:"subject_id" validate:"required,notblank"`
	TeacherID      string   `json:"teacher_id"`
	Grade          *float64 `json:"grade" validate:"required,grade"`
	Coefficient    float64  `json:"coefficient" validate:"gt=0"`
	Participation  *float64 `json:"participation" validate:"omitempty,grade"`
	Homework       *float64 `json:"homework" validate:"omitempty,grade"`
	Tests          *float64 `json:"tests" validate:"omitempty,grade"`
	TeacherComment string   `json:"teacher_comment" validate:"max=500"`
}

type QueryFilter struct {
	Status         Status `json:"status" query:"status" validate:"omitempty,bulletin_status"`
	StudentID      string `json:"student_id" query:"student_id"`
	ClassID        string `json:"class_id" query:"class_id"`
	TermID         string `json:"term_id" query:"term_id"`
	AcademicYearID string `json:"academic_year_id" query:"academic_year_id"`
	SchoolID       string `json:"school_id" query:"school_id"`
	SubmittedBy    string `json:"submitted_by" query:"submitted_by"`
}

// OrderingFields maps the API ordering fields onto the bulletin columns.
var OrderingFields = map[string]string{
	"created_at":      "created_at",
	"updated_at":      "updated_at",
	"submitted_at":    "submitted_at",
	"approved_at":     "approved_at",
	"rejected_at":     "rejected_at",
	"sent_at":         "sent_at",
	"student_id":      "student_id",
	"general_average": "general_average",
	"class_rank":      "class_rank",
	"status":          "status",
}

// VerifyRequest holds a parent's verification attempt, by QR payload or by verification code.
type VerifyRequest struct {
	QRCode           string           `json:"qr_code" validate:"required_without=VerificationCode"`
	VerificationCode string           `json:"verification_code" validate:"required_without=QRCode"`
	Type             VerificationType `json:"verification_type" validate:"omitempty,oneof=qr_scan code_entry"`
	ParentID         string           `json:"-"`
	IPAddress        string           `json:"-"`
	UserAgent        string           `json:"-"`
}

// VerifyResult is the public view of a successfully verified bulletin.
type VerifyResult struct {
	Valid             bool      `json:"valid"`
	BulletinID        string    `json:"bulletin_id"`
	StudentID         string    `json:"student_id"`
	ClassID           string    `json:"class_id"`
	TermID            string    `json:"term_id"`
	AcademicYearID    string    `json:"academic_year_id"`
	Status            Status    `json:"status"`
	GeneralAverage    *float64  `json:"general_average"`
	ClassRank         int       `json:"class_rank,omitempty"`
	TrackingNumber    string    `json:"tracking_number"`
	ApprovedAt        time.Time `json:"approved_at"`
	FirstVerification bool      `json:"first_verification"`
}

// SheetRow is one line of an imported grade sheet.
type SheetRow struct {
	Row            int
	StudentID      string
	SubjectID      string
	TeacherID      string
	Grade          float64
	Coefficient    float64
	TeacherComment string
}

// ImportReport summarizes a grade sheet import.
type ImportReport struct {
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Grades    int               `json:"grades"`
	Skipped   map[string]string `json:"skipped,omitempty"` // {student_id: reason}
	Bulletins []string          `json:"bulletins"`
}
