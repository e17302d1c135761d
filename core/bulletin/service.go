package bulletin

import (
	"context"
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

type Service struct {
	repo          Repository
	signer        *Signer
	notifier      Notifier
	logger        core.Logger
	validate      *validator.Validate
	translator    ut.Translator
	retries       int
	notifyTimeout time.Duration
}

func NewService(
	conf *core.Config,
	repo Repository,
	notifier Notifier,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	retries := conf.Bulletins.TransitionRetries
	if retries < 0 {
		retries = 0
	}
	notifyTimeout := conf.Bulletins.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 30 * time.Second
	}
	return &Service{
		repo:          repo,
		signer:        NewSigner(conf.SecretKey),
		notifier:      notifier,
		logger:        logger,
		validate:      validate,
		translator:    translator,
		retries:       retries,
		notifyTimeout: notifyTimeout,
	}
}

func (svc *Service) validateStruct(s interface{}) error {
	if err := svc.validate.Struct(s); err != nil {
		return core.ValidationErrorFrom(err, svc.translator)
	}
	return nil
}

func now() time.Time {
	return NowFunc().UTC()
}

// Queries

func (svc *Service) Get(ctx context.Context, id string) (Bulletin, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.DBPage) ([]Bulletin, error) {
	if err := svc.validateStruct(filter); err != nil {
		return nil, err
	}
	return svc.repo.Query(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *Service) Approvals(ctx context.Context, id string) ([]Approval, error) {
	if _, err := svc.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.Approvals(ctx, id)
}

// Drafts & grades

// Create creates a draft bulletin with its initial grades.
func (svc *Service) Create(ctx context.Context, nb NewBulletin) (Bulletin, error) {
	b, err := svc.create(ctx, nb)
	if err != nil {
		return Bulletin{}, err
	}
	if err = svc.RecomputeClass(ctx, b.ClassKey()); err != nil {
		return Bulletin{}, err
	}
	return svc.repo.GetByID(ctx, b.ID)
}

func (svc *Service) create(ctx context.Context, nb NewBulletin) (Bulletin, error) {
	nb.StudentID = core.CleanString(nb.StudentID)
	nb.ClassID = core.CleanString(nb.ClassID)
	nb.TermID = core.CleanString(nb.TermID)
	nb.AcademicYearID = core.CleanString(nb.AcademicYearID)
	if err := svc.validateStruct(nb); err != nil {
		return Bulletin{}, err
	}

	ts := now()
	b := Bulletin{
		StudentID:        nb.StudentID,
		ClassID:          nb.ClassID,
		TermID:           nb.TermID,
		AcademicYearID:   nb.AcademicYearID,
		SchoolID:         core.CleanString(nb.SchoolID),
		Status:           StatusDraft,
		TeacherComments:  core.CleanString(nb.TeacherComments),
		DirectorComments: nb.DirectorComments,
		Version:          1,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	if err := mergeGrades(&b, nb.Grades, ts); err != nil {
		return Bulletin{}, err
	}
	summarize(&b)

	b, err := svc.repo.Create(ctx, b)
	if err != nil {
		if errors.Cause(err) == ErrExists {
			return Bulletin{}, core.NewValidationError(ErrExists, core.FieldError{Field: "student_id", Error: ErrExists.Error()})
		}
		return Bulletin{}, errors.Wrap(err, "creating bulletin")
	}
	return b, nil
}

// mergeGrades upserts the grades in b by subject.
func mergeGrades(b *Bulletin, inputs []GradeInput, ts time.Time) error {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		subject := core.CleanString(in.SubjectID)
		if seen[subject] {
			return core.NewFieldError("grades", fmt.Sprintf("subject %q is graded more than once", subject))
		}
		seen[subject] = true

		g := Grade{
			BulletinID:     b.ID,
			SubjectID:      subject,
			TeacherID:      core.CleanString(in.TeacherID),
			Grade:          *in.Grade,
			Coefficient:    in.Coefficient,
			Participation:  in.Participation,
			Homework:       in.Homework,
			Tests:          in.Tests,
			TeacherComment: core.CleanString(in.TeacherComment),
			CreatedAt:      ts,
			UpdatedAt:      ts,
		}
		var found bool
		for i := range b.Grades {
			if b.Grades[i].SubjectID == subject {
				g.ID = b.Grades[i].ID
				g.CreatedAt = b.Grades[i].CreatedAt
				b.Grades[i] = g
				found = true
				break
			}
		}
		if !found {
			b.Grades = append(b.Grades, g)
		}
	}
	sort.SliceStable(b.Grades, func(i, j int) bool { return b.Grades[i].SubjectID < b.Grades[j].SubjectID })
	return nil
}

// SaveGrades inserts or updates grades of a bulletin that was not sent yet.
// The bulletin's average and the ranks of its class are recomputed.
func (svc *Service) SaveGrades(ctx context.Context, id string, inputs []GradeInput) (Bulletin, error) {
	for i := range inputs {
		if err := svc.validateStruct(inputs[i]); err != nil {
			return Bulletin{}, err
		}
	}
	b, err := svc.mutateGrades(ctx, id, func(b *Bulletin) error {
		return mergeGrades(b, inputs, now())
	})
	if err != nil {
		return Bulletin{}, err
	}
	if err = svc.RecomputeClass(ctx, b.ClassKey()); err != nil {
		return Bulletin{}, err
	}
	return svc.repo.GetByID(ctx, b.ID)
}

// DeleteGrade removes the grade of a subject from a bulletin that was not sent yet.
func (svc *Service) DeleteGrade(ctx context.Context, id, subjectID string) (Bulletin, error) {
	b, err := svc.mutateGrades(ctx, id, func(b *Bulletin) error {
		for i, g := range b.Grades {
			if g.SubjectID == subjectID {
				b.Grades = append(b.Grades[:i:i], b.Grades[i+1:]...)
				return nil
			}
		}
		return ErrGradeNotFound
	})
	if err != nil {
		return Bulletin{}, err
	}
	if err = svc.RecomputeClass(ctx, b.ClassKey()); err != nil {
		return Bulletin{}, err
	}
	return svc.repo.GetByID(ctx, b.ID)
}

func (svc *Service) mutateGrades(ctx context.Context, id string, mutate func(b *Bulletin) error) (Bulletin, error) {
	for attempt := 0; ; attempt++ {
		b, err := svc.repo.GetByID(ctx, id)
		if err != nil {
			return Bulletin{}, err
		}
		if b.Status == StatusSent {
			return Bulletin{}, ErrBulletinLocked
		}
		if err = mutate(&b); err != nil {
			return Bulletin{}, err
		}
		summarize(&b)
		b.UpdatedAt = now()
		if b.SecurityHash != "" { // content changed after approval: re-sign
			b.SecurityHash = svc.signer.SecurityHash(b)
		}

		saved, err := svc.repo.SaveGrades(ctx, b)
		if err == nil {
			return saved, nil
		}
		if errors.Cause(err) != ErrConflict {
			return Bulletin{}, errors.Wrap(err, "saving grades")
		}
		if attempt >= svc.retries {
			return Bulletin{}, ErrConflict
		}
	}
}

// RecomputeClass recomputes the ranks of a class. Sent bulletins take part in the ranking but keep the
// rank they were sent with.
func (svc *Service) RecomputeClass(ctx context.Context, key ClassKey) error {
	if err := svc.repo.RecomputeRanks(ctx, key); err != nil {
		return errors.Wrap(err, "recomputing class ranks")
	}
	return nil
}

// ImportGrades saves the grades of a class sheet: drafts are created for students without a bulletin,
// existing bulletins get their grades merged. Students whose bulletin was sent are skipped.
func (svc *Service) ImportGrades(ctx context.Context, key ClassKey, schoolID string, rows []SheetRow) (ImportReport, error) {
	if err := svc.validateStruct(key); err != nil {
		return ImportReport{}, err
	}
	existing, err := svc.repo.Query(ctx, QueryFilter{
		ClassID:        key.ClassID,
		TermID:         key.TermID,
		AcademicYearID: key.AcademicYearID,
	}, nil, core.DBPage{})
	if err != nil {
		return ImportReport{}, errors.Wrap(err, "querying class bulletins")
	}
	byStudent := make(map[string]Bulletin, len(existing))
	for _, b := range existing {
		byStudent[b.StudentID] = b
	}

	inputs := make(map[string][]GradeInput)
	students := make([]string, 0)
	for _, row := range rows {
		if _, ok := inputs[row.StudentID]; !ok {
			students = append(students, row.StudentID)
		}
		grade := row.Grade
		inputs[row.StudentID] = append(inputs[row.StudentID], GradeInput{
			SubjectID:      row.SubjectID,
			TeacherID:      row.TeacherID,
			Grade:          &grade,
			Coefficient:    row.Coefficient,
			TeacherComment: row.TeacherComment,
		})
	}

	report := ImportReport{Skipped: make(map[string]string), Bulletins: make([]string, 0, len(students))}
	for _, studentID := range students {
		grades := inputs[studentID]
		var skip error
		for i := range grades {
			if skip = svc.validateStruct(grades[i]); skip != nil {
				break
			}
		}
		if skip != nil {
			report.Skipped[studentID] = skip.Error()
			continue
		}

		if b, ok := byStudent[studentID]; ok {
			if b.Status == StatusSent {
				report.Skipped[studentID] = ErrBulletinLocked.Error()
				continue
			}
			if _, err = svc.mutateGrades(ctx, b.ID, func(b *Bulletin) error { return mergeGrades(b, grades, now()) }); err != nil {
				if core.IsValidationError(err) || errors.Cause(err) == ErrBulletinLocked {
					report.Skipped[studentID] = err.Error()
					continue
				}
				return report, err
			}
			report.Updated++
			report.Bulletins = append(report.Bulletins, b.ID)
		} else {
			b, err = svc.create(ctx, NewBulletin{
				StudentID:      studentID,
				ClassID:        key.ClassID,
				TermID:         key.TermID,
				AcademicYearID: key.AcademicYearID,
				SchoolID:       schoolID,
				Grades:         grades,
			})
			if err != nil {
				if core.IsValidationError(err) {
					report.Skipped[studentID] = err.Error()
					continue
				}
				return report, err
			}
			report.Created++
			report.Bulletins = append(report.Bulletins, b.ID)
		}
		report.Grades += len(grades)
	}

	if err = svc.RecomputeClass(ctx, key); err != nil {
		return report, err
	}
	return report, nil
}

// Workflow

// Execute applies a workflow command to a bulletin. Concurrent writers are serialized by the
// bulletin's version: on conflict the bulletin is read again and the command re-evaluated against
// its new status. Sending dispatches the notification once the transition is stored.
func (svc *Service) Execute(ctx context.Context, id string, cmd Command) (Bulletin, error) {
	for attempt := 0; ; attempt++ {
		cur, err := svc.repo.GetByID(ctx, id)
		if err != nil {
			return Bulletin{}, err
		}
		ts := now()
		next, approval, err := Apply(cur, cmd, ts)
		if err != nil {
			return Bulletin{}, err
		}
		if cmd.Action != ActionReject {
			// a bulletin moves forward only with grades to average
			if _, err = ComputeAverage(cur.Grades); err != nil {
				return Bulletin{}, err
			}
		}
		if cmd.Action == ActionApprove || cmd.Action == ActionSend {
			if err = svc.signer.Issue(&next, ts); err != nil {
				return Bulletin{}, err
			}
		}

		saved, err := svc.repo.Transition(ctx, next, approval)
		if err == nil {
			if cmd.Action == ActionSend {
				svc.dispatch(saved)
			}
			return saved, nil
		}
		switch errors.Cause(err) {
		case ErrConflict, ErrDuplicateCode:
			if attempt >= svc.retries {
				return Bulletin{}, ErrConflict
			}
		default:
			return Bulletin{}, errors.Wrap(err, "storing transition")
		}
	}
}

func (svc *Service) Submit(ctx context.Context, id, actorID, comment string) (Bulletin, error) {
	return svc.Execute(ctx, id, Submit(actorID, comment))
}

func (svc *Service) Approve(ctx context.Context, id, actorID, comment string) (Bulletin, error) {
	return svc.Execute(ctx, id, Approve(actorID, comment))
}

func (svc *Service) Reject(ctx context.Context, id, actorID, comment string) (Bulletin, error) {
	return svc.Execute(ctx, id, Reject(actorID, comment))
}

func (svc *Service) Send(ctx context.Context, id, actorID, comment string) (Bulletin, error) {
	return svc.Execute(ctx, id, Send(actorID, comment))
}

// dispatch hands the sent bulletin over to the notifier. Failures are logged, the transition stands.
func (svc *Service) dispatch(b Bulletin) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.notifyTimeout)
	defer cancel()

	if err := svc.notifier.Notify(ctx, NewNotification(b)); err != nil {
		svc.logger.Error(
			fmt.Sprintf("notification dispatch failed for bulletin %s: %v", b.ID, err),
			errors.Wrap(err, "dispatching notification"),
			map[string]interface{}{"bulletin_id": b.ID, "tracking_number": b.TrackingNumber},
		)
	}
}

// Verification

// Verify checks a bulletin presented by a parent, by QR payload or verification code.
// Every attempt is recorded; the first success marks the bulletin as verified by a parent.
func (svc *Service) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if err := svc.validateStruct(req); err != nil {
		return VerifyResult{}, err
	}

	attempt := Verification{
		ParentID:  req.ParentID,
		Type:      req.Type,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Timestamp: now(),
	}

	var (
		b   Bulletin
		err error
	)
	if req.QRCode != "" {
		if attempt.Type == "" {
			attempt.Type = VerificationQRScan
		}
		var tn, code string
		if tn, code, err = svc.signer.ParseQRPayload(req.QRCode); err != nil {
			return VerifyResult{}, svc.failVerification(ctx, attempt, ErrVerificationFailed, err.Error())
		}
		attempt.VerificationCode = code
		if b, err = svc.repo.GetByTrackingNumber(ctx, tn); err == nil && b.VerificationCode != code {
			err = ErrNotFound
		}
	} else {
		if attempt.Type == "" {
			attempt.Type = VerificationCodeEntry
		}
		attempt.VerificationCode = NormalizeCode(req.VerificationCode)
		b, err = svc.repo.GetByVerificationCode(ctx, attempt.VerificationCode)
	}
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return VerifyResult{}, svc.failVerification(ctx, attempt, ErrNotFound, "bulletin not found or invalid verification code")
		}
		return VerifyResult{}, errors.Wrap(err, "finding bulletin")
	}

	attempt.BulletinID = b.ID
	if !b.Status.Verifiable() {
		return VerifyResult{}, svc.failVerification(ctx, attempt, ErrVerificationFailed, "bulletin is not approved")
	}
	if !svc.signer.CheckSecurityHash(b) {
		return VerifyResult{}, svc.failVerification(ctx, attempt, ErrVerificationFailed, "security hash mismatch")
	}

	attempt.Success = true
	first, err := svc.repo.RecordVerification(ctx, attempt)
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "recording verification")
	}
	res := svc.result(b)
	res.FirstVerification = first
	return res, nil
}

func (svc *Service) failVerification(ctx context.Context, attempt Verification, cause error, reason string) error {
	attempt.Success = false
	attempt.ErrorMessage = reason
	if _, err := svc.repo.RecordVerification(ctx, attempt); err != nil {
		svc.logger.Error(fmt.Sprintf("recording failed verification: %v", err), errors.Wrap(err, "recording verification"))
	}
	return errors.Wrap(cause, reason)
}

func (svc *Service) result(b Bulletin) VerifyResult {
	return VerifyResult{
		Valid:          b.Status.Verifiable() && svc.signer.CheckSecurityHash(b),
		BulletinID:     b.ID,
		StudentID:      b.StudentID,
		ClassID:        b.ClassID,
		TermID:         b.TermID,
		AcademicYearID: b.AcademicYearID,
		Status:         b.Status,
		GeneralAverage: b.GeneralAverage,
		ClassRank:      b.ClassRank,
		TrackingNumber: b.TrackingNumber,
		ApprovedAt:     b.ApprovedAt,
	}
}

// Track returns the public view of a bulletin by its tracking number.
func (svc *Service) Track(ctx context.Context, trackingNumber string) (VerifyResult, error) {
	b, err := svc.repo.GetByTrackingNumber(ctx, core.CleanString(trackingNumber))
	if err != nil {
		return VerifyResult{}, err
	}
	return svc.result(b), nil
}
