package sqlxrepos

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

const (
	bulletinsTable     = "bulletins"
	gradesTable        = "bulletin_grades"
	approvalsTable     = "bulletin_approvals"
	verificationsTable = "bulletin_verifications"
	signaturesTable    = "bulletin_signatures"
	guardiansTable     = "student_guardians"
)

var bulletinColumns = []string{
	"id", "student_id", "class_id", "term_id", "academic_year_id", "school_id", "status",
	"submitted_by", "approved_by", "rejected_by", "sent_by",
	"submission_comment", "approval_comment", "rejection_comment",
	"submitted_at", "approved_at", "rejected_at", "sent_at",
	"total_points", "total_coefficients", "general_average", "class_rank", "total_students_in_class",
	"tracking_number", "qr_code", "verification_code", "security_hash", "parent_verified", "parent_verified_at",
	"teacher_comments", "director_comments", "version", "created_at", "updated_at",
}

var gradeColumns = []string{
	"id", "bulletin_id", "subject_id", "teacher_id", "grade", "coefficient", "points",
	"participation", "homework", "tests", "teacher_comment", "created_at", "updated_at",
}

var approvalColumns = []string{"id", "bulletin_id", "user_id", "action", "previous_status", "new_status", "comment", "created_at"}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func nullInt(i int) null.Int {
	return null.NewInt(i, i != 0)
}

type classRankRow struct {
	ID             string       `db:"id"`
	Status         string       `db:"status"`
	GeneralAverage null.Float64 `db:"general_average"`
}

type bulletinRow struct {
	ID                   string       `db:"id"`
	StudentID            string       `db:"student_id"`
	ClassID              string       `db:"class_id"`
	TermID               string       `db:"term_id"`
	AcademicYearID       string       `db:"academic_year_id"`
	SchoolID             string       `db:"school_id"`
	Status               string       `db:"status"`
	SubmittedBy          null.String  `db:"submitted_by"`
	ApprovedBy           null.String  `db:"approved_by"`
	RejectedBy           null.String  `db:"rejected_by"`
	SentBy               null.String  `db:"sent_by"`
	SubmissionComment    null.String  `db:"submission_comment"`
	ApprovalComment      null.String  `db:"approval_comment"`
	RejectionComment     null.String  `db:"rejection_comment"`
	SubmittedAt          null.Time    `db:"submitted_at"`
	ApprovedAt           null.Time    `db:"approved_at"`
	RejectedAt           null.Time    `db:"rejected_at"`
	SentAt               null.Time    `db:"sent_at"`
	TotalPoints          float64      `db:"total_points"`
	TotalCoefficients    float64      `db:"total_coefficients"`
	GeneralAverage       null.Float64 `db:"general_average"`
	ClassRank            null.Int     `db:"class_rank"`
	TotalStudentsInClass null.Int     `db:"total_students_in_class"`
	TrackingNumber       null.String  `db:"tracking_number"`
	QRCode               null.String  `db:"qr_code"`
	VerificationCode     null.String  `db:"verification_code"`
	SecurityHash         null.String  `db:"security_hash"`
	ParentVerified       bool         `db:"parent_verified"`
	ParentVerifiedAt     null.Time    `db:"parent_verified_at"`
	TeacherComments      null.String  `db:"teacher_comments"`
	DirectorComments     null.String  `db:"director_comments"`
	Version              int          `db:"version"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

func newBulletinRow(b bulletin.Bulletin) bulletinRow {
	return bulletinRow{
		ID:                   b.ID,
		StudentID:            b.StudentID,
		ClassID:              b.ClassID,
		TermID:               b.TermID,
		AcademicYearID:       b.AcademicYearID,
		SchoolID:             b.SchoolID,
		Status:               string(b.Status),
		SubmittedBy:          nullString(b.SubmittedBy),
		ApprovedBy:           nullString(b.ApprovedBy),
		RejectedBy:           nullString(b.RejectedBy),
		SentBy:               nullString(b.SentBy),
		SubmissionComment:    nullString(b.SubmissionComment),
		ApprovalComment:      nullString(b.ApprovalComment),
		RejectionComment:     nullString(b.RejectionComment),
		SubmittedAt:          nullTime(b.SubmittedAt),
		ApprovedAt:           nullTime(b.ApprovedAt),
		RejectedAt:           nullTime(b.RejectedAt),
		SentAt:               nullTime(b.SentAt),
		TotalPoints:          b.TotalPoints,
		TotalCoefficients:    b.TotalCoefficients,
		GeneralAverage:       null.Float64FromPtr(b.GeneralAverage),
		ClassRank:            nullInt(b.ClassRank),
		TotalStudentsInClass: nullInt(b.TotalStudentsInClass),
		TrackingNumber:       nullString(b.TrackingNumber),
		QRCode:               nullString(b.QRCode),
		VerificationCode:     nullString(b.VerificationCode),
		SecurityHash:         nullString(b.SecurityHash),
		ParentVerified:       b.ParentVerified,
		ParentVerifiedAt:     nullTime(b.ParentVerifiedAt),
		TeacherComments:      nullString(b.TeacherComments),
		DirectorComments:     nullString(b.DirectorComments),
		Version:              b.Version,
		CreatedAt:            b.CreatedAt.UTC(),
		UpdatedAt:            b.UpdatedAt.UTC(),
	}
}

func (r bulletinRow) values() []interface{} {
	return []interface{}{
		r.ID, r.StudentID, r.ClassID, r.TermID, r.AcademicYearID, r.SchoolID, r.Status,
		r.SubmittedBy, r.ApprovedBy, r.RejectedBy, r.SentBy,
		r.SubmissionComment, r.ApprovalComment, r.RejectionComment,
		r.SubmittedAt, r.ApprovedAt, r.RejectedAt, r.SentAt,
		r.TotalPoints, r.TotalCoefficients, r.GeneralAverage, r.ClassRank, r.TotalStudentsInClass,
		r.TrackingNumber, r.QRCode, r.VerificationCode, r.SecurityHash, r.ParentVerified, r.ParentVerifiedAt,
		r.TeacherComments, r.DirectorComments, r.Version, r.CreatedAt, r.UpdatedAt,
	}
}

func (r bulletinRow) bulletin() bulletin.Bulletin {
	return bulletin.Bulletin{
		ID:                   r.ID,
		StudentID:            r.StudentID,
		ClassID:              r.ClassID,
		TermID:               r.TermID,
		AcademicYearID:       r.AcademicYearID,
		SchoolID:             r.SchoolID,
		Status:               bulletin.Status(r.Status),
		SubmittedBy:          r.SubmittedBy.String,
		ApprovedBy:           r.ApprovedBy.String,
		RejectedBy:           r.RejectedBy.String,
		SentBy:               r.SentBy.String,
		SubmissionComment:    r.SubmissionComment.String,
		ApprovalComment:      r.ApprovalComment.String,
		RejectionComment:     r.RejectionComment.String,
		SubmittedAt:          r.SubmittedAt.Time.UTC(),
		ApprovedAt:           r.ApprovedAt.Time.UTC(),
		RejectedAt:           r.RejectedAt.Time.UTC(),
		SentAt:               r.SentAt.Time.UTC(),
		TotalPoints:          r.TotalPoints,
		TotalCoefficients:    r.TotalCoefficients,
		GeneralAverage:       r.GeneralAverage.Ptr(),
		ClassRank:            r.ClassRank.Int,
		TotalStudentsInClass: r.TotalStudentsInClass.Int,
		TrackingNumber:       r.TrackingNumber.String,
		QRCode:               r.QRCode.String,
		VerificationCode:     r.VerificationCode.String,
		SecurityHash:         r.SecurityHash.String,
		ParentVerified:       r.ParentVerified,
		ParentVerifiedAt:     r.ParentVerifiedAt.Time.UTC(),
		TeacherComments:      r.TeacherComments.String,
		DirectorComments:     r.DirectorComments.String,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type gradeRow struct {
	ID             string       `db:"id"`
	BulletinID     string       `db:"bulletin_id"`
	SubjectID      string       `db:"subject_id"`
	TeacherID      string       `db:"teacher_id"`
	Grade          float64      `db:"grade"`
	Coefficient    float64      `db:"coefficient"`
	Points         float64      `db:"points"`
	Participation  null.Float64 `db:"participation"`
	Homework       null.Float64 `db:"homework"`
	Tests          null.Float64 `db:"tests"`
	TeacherComment null.String  `db:"teacher_comment"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func newGradeRow(g bulletin.Grade) gradeRow {
	return gradeRow{
		ID:             g.ID,
		BulletinID:     g.BulletinID,
		SubjectID:      g.SubjectID,
		TeacherID:      g.TeacherID,
		Grade:          g.Grade,
		Coefficient:    g.Coefficient,
		Points:         g.Points,
		Participation:  null.Float64FromPtr(g.Participation),
		Homework:       null.Float64FromPtr(g.Homework),
		Tests:          null.Float64FromPtr(g.Tests),
		TeacherComment: nullString(g.TeacherComment),
		CreatedAt:      g.CreatedAt.UTC(),
		UpdatedAt:      g.UpdatedAt.UTC(),
	}
}

func (r gradeRow) values() []interface{} {
	return []interface{}{
		r.ID, r.BulletinID, r.SubjectID, r.TeacherID, r.Grade, r.Coefficient, r.Points,
		r.Participation, r.Homework, r.Tests, r.TeacherComment, r.CreatedAt, r.UpdatedAt,
	}
}

func (r gradeRow) grade() bulletin.Grade {
	return bulletin.Grade{
		ID:             r.ID,
		BulletinID:     r.BulletinID,
		SubjectID:      r.SubjectID,
		TeacherID:      r.TeacherID,
		Grade:          r.Grade,
		Coefficient:    r.Coefficient,
		Points:         r.Points,
		Participation:  r.Participation.Ptr(),
		Homework:       r.Homework.Ptr(),
		Tests:          r.Tests.Ptr(),
		TeacherComment: r.TeacherComment.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type approvalRow struct {
	ID             string      `db:"id"`
	BulletinID     string      `db:"bulletin_id"`
	UserID         string      `db:"user_id"`
	Action         string      `db:"action"`
	PreviousStatus string      `db:"previous_status"`
	NewStatus      string      `db:"new_status"`
	Comment        null.String `db:"comment"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (r approvalRow) approval() bulletin.Approval {
	return bulletin.Approval{
		ID:             r.ID,
		BulletinID:     r.BulletinID,
		UserID:         r.UserID,
		Action:         r.Action,
		PreviousStatus: bulletin.Status(r.PreviousStatus),
		NewStatus:      bulletin.Status(r.NewStatus),
		Comment:        r.Comment.String,
		Timestamp:      r.CreatedAt.UTC(),
	}
}

type guardianRow struct {
	ID        string      `db:"id"`
	StudentID string      `db:"student_id"`
	Name      string      `db:"name"`
	Email     null.String `db:"email"`
	Phone     null.String `db:"phone"`
	Language  string      `db:"language"`
}

func (r guardianRow) guardian() bulletin.Guardian {
	return bulletin.Guardian{
		ID:        r.ID,
		StudentID: r.StudentID,
		Name:      r.Name,
		Email:     r.Email.String,
		Phone:     r.Phone.String,
		Language:  r.Language,
	}
}
