package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type bulletinRepository struct {
	db *sqlx.DB
}

var _ bulletin.Repository = (*bulletinRepository)(nil) // interface compliance check

func NewBulletinRepository(db *sqlx.DB) *bulletinRepository {
	return &bulletinRepository{db: db}
}

// trapNoRowsErr maps "no rows" errors to bulletin.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return bulletin.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// uniqueConstraint returns the name of the unique constraint err violates, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func exec(ctx context.Context, ex sqlx.ExecerContext, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return ex.ExecContext(ctx, query, args...)
}

func insertGrades(ctx context.Context, tx *sqlx.Tx, b bulletin.Bulletin) error {
	if len(b.Grades) == 0 {
		return nil
	}
	ins := psql.Insert(gradesTable).Columns(gradeColumns...)
	for _, g := range b.Grades {
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		g.BulletinID = b.ID
		ins = ins.Values(newGradeRow(g).values()...)
	}
	if _, err := exec(ctx, tx, ins); err != nil {
		return errors.Wrap(err, "inserting grades")
	}
	return nil
}

func (repo *bulletinRepository) Create(ctx context.Context, b bulletin.Bulletin) (bulletin.Bulletin, error) {
	b.ID = uuid.New().String()
	if b.Version == 0 {
		b.Version = 1
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		ins := psql.Insert(bulletinsTable).Columns(bulletinColumns...).Values(newBulletinRow(b).values()...)
		if _, err := exec(ctx, tx, ins); err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return bulletin.ErrExists
			}
			return errors.Wrap(err, "inserting bulletin")
		}
		return insertGrades(ctx, tx, b)
	})
	if err != nil {
		return bulletin.Bulletin{}, err
	}
	return repo.GetByID(ctx, b.ID)
}

func (repo *bulletinRepository) getBy(ctx context.Context, q sqlx.QueryerContext, column, val string) (bulletin.Bulletin, error) {
	query, args, err := psql.Select(bulletinColumns...).From(bulletinsTable).Where(sq.Eq{column: val}).ToSql()
	if err != nil {
		return bulletin.Bulletin{}, errors.Wrap(err, "building query")
	}
	var row bulletinRow
	if err = sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return bulletin.Bulletin{}, trapNoRowsErr(err, "getting bulletin")
	}
	b := row.bulletin()

	query, args, err = psql.Select(gradeColumns...).From(gradesTable).
		Where(sq.Eq{"bulletin_id": b.ID}).OrderBy("subject_id").ToSql()
	if err != nil {
		return bulletin.Bulletin{}, errors.Wrap(err, "building query")
	}
	var grades []gradeRow
	if err = sqlx.SelectContext(ctx, q, &grades, query, args...); err != nil {
		return bulletin.Bulletin{}, errors.Wrap(err, "getting grades")
	}
	for _, g := range grades {
		b.Grades = append(b.Grades, g.grade())
	}
	return b, nil
}

func (repo *bulletinRepository) GetByID(ctx context.Context, id string) (bulletin.Bulletin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return bulletin.Bulletin{}, bulletin.ErrNotFound
	}
	return repo.getBy(ctx, repo.db, "id", id)
}

func (repo *bulletinRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (bulletin.Bulletin, error) {
	return repo.getBy(ctx, repo.db, "tracking_number", trackingNumber)
}

func (repo *bulletinRepository) GetByVerificationCode(ctx context.Context, code string) (bulletin.Bulletin, error) {
	return repo.getBy(ctx, repo.db, "verification_code", code)
}

func (repo *bulletinRepository) Query(
	ctx context.Context,
	filter bulletin.QueryFilter,
	ordering []core.DBOrdering,
	page core.DBPage,
) ([]bulletin.Bulletin, error) {
	where := sq.Eq{}
	set := func(column, val string) {
		if val != "" {
			where[column] = val
		}
	}
	set("status", string(filter.Status))
	set("student_id", filter.StudentID)
	set("class_id", filter.ClassID)
	set("term_id", filter.TermID)
	set("academic_year_id", filter.AcademicYearID)
	set("school_id", filter.SchoolID)
	set("submitted_by", filter.SubmittedBy)

	sel := psql.Select(bulletinColumns...).From(bulletinsTable).Where(where)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	for _, ord := range ordering {
		dir := " DESC NULLS LAST"
		if ord.Ascending {
			dir = " ASC NULLS LAST"
		}
		sel = sel.OrderBy(ord.Field + dir)
	}
	sel = sel.OrderBy("id")
	if page.Limit > 0 {
		sel = sel.Limit(page.Limit)
	}
	if page.Offset > 0 {
		sel = sel.Offset(page.Offset)
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []bulletinRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying bulletins")
	}
	bulletins := make([]bulletin.Bulletin, 0, len(rows))
	for _, r := range rows {
		bulletins = append(bulletins, r.bulletin())
	}
	return bulletins, nil
}

func (repo *bulletinRepository) Approvals(ctx context.Context, bulletinID string) ([]bulletin.Approval, error) {
	query, args, err := psql.Select(approvalColumns...).From(approvalsTable).
		Where(sq.Eq{"bulletin_id": bulletinID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []approvalRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying approvals")
	}
	approvals := make([]bulletin.Approval, 0, len(rows))
	for _, r := range rows {
		approvals = append(approvals, r.approval())
	}
	return approvals, nil
}

// compareAndSwap runs upd guarded by the bulletin's version and bumps it.
func compareAndSwap(ctx context.Context, tx *sqlx.Tx, b bulletin.Bulletin, upd sq.UpdateBuilder) error {
	upd = upd.Set("version", b.Version+1).Where(sq.Eq{"id": b.ID, "version": b.Version})
	res, err := exec(ctx, tx, upd)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting updated rows")
	}
	if n == 1 {
		return nil
	}

	var found bool
	err = tx.GetContext(ctx, &found, "SELECT true FROM "+bulletinsTable+" WHERE id = $1", b.ID)
	if errors.Cause(err) == sql.ErrNoRows {
		return bulletin.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "checking bulletin")
	}
	return bulletin.ErrConflict
}

func (repo *bulletinRepository) Transition(ctx context.Context, b bulletin.Bulletin, a bulletin.Approval) (bulletin.Bulletin, error) {
	r := newBulletinRow(b)
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		upd := psql.Update(bulletinsTable).SetMap(map[string]interface{}{
			"status":             r.Status,
			"submitted_by":       r.SubmittedBy,
			"approved_by":        r.ApprovedBy,
			"rejected_by":        r.RejectedBy,
			"sent_by":            r.SentBy,
			"submission_comment": r.SubmissionComment,
			"approval_comment":   r.ApprovalComment,
			"rejection_comment":  r.RejectionComment,
			"submitted_at":       r.SubmittedAt,
			"approved_at":        r.ApprovedAt,
			"rejected_at":        r.RejectedAt,
			"sent_at":            r.SentAt,
			"tracking_number":    r.TrackingNumber,
			"qr_code":            r.QRCode,
			"verification_code":  r.VerificationCode,
			"security_hash":      r.SecurityHash,
			"director_comments":  r.DirectorComments,
			"updated_at":         r.UpdatedAt,
		})
		if err := compareAndSwap(ctx, tx, b, upd); err != nil {
			if constraint, ok := uniqueConstraint(err); ok && isCodeConstraint(constraint) {
				return bulletin.ErrDuplicateCode
			}
			return errors.Wrap(err, "updating bulletin")
		}

		ins := psql.Insert(approvalsTable).Columns(approvalColumns...).Values(
			uuid.New().String(), b.ID, a.UserID, a.Action, string(a.PreviousStatus), string(a.NewStatus),
			nullString(a.Comment), a.Timestamp.UTC(),
		)
		if _, err := exec(ctx, tx, ins); err != nil {
			return errors.Wrap(err, "inserting approval")
		}

		if a.NewStatus == bulletin.StatusApproved {
			ins = psql.Insert(signaturesTable).Columns("id", "bulletin_id", "signer_id", "signer_role", "signed_at").
				Values(uuid.New().String(), b.ID, a.UserID, "director", a.Timestamp.UTC())
			if _, err := exec(ctx, tx, ins); err != nil {
				return errors.Wrap(err, "inserting signature")
			}
		}
		return nil
	})
	if err != nil {
		return bulletin.Bulletin{}, err
	}
	return repo.GetByID(ctx, b.ID)
}

func isCodeConstraint(name string) bool {
	for _, col := range []string{"tracking_number", "qr_code", "verification_code"} {
		if strings.Contains(name, col) {
			return true
		}
	}
	return false
}

func (repo *bulletinRepository) SaveGrades(ctx context.Context, b bulletin.Bulletin) (bulletin.Bulletin, error) {
	r := newBulletinRow(b)
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		upd := psql.Update(bulletinsTable).SetMap(map[string]interface{}{
			"total_points":       r.TotalPoints,
			"total_coefficients": r.TotalCoefficients,
			"general_average":    r.GeneralAverage,
			"security_hash":      r.SecurityHash,
			"updated_at":         r.UpdatedAt,
		})
		if err := compareAndSwap(ctx, tx, b, upd); err != nil {
			return errors.Wrap(err, "updating bulletin")
		}
		if _, err := exec(ctx, tx, psql.Delete(gradesTable).Where(sq.Eq{"bulletin_id": b.ID})); err != nil {
			return errors.Wrap(err, "deleting grades")
		}
		return insertGrades(ctx, tx, b)
	})
	if err != nil {
		return bulletin.Bulletin{}, err
	}
	return repo.GetByID(ctx, b.ID)
}

// RecomputeRanks holds a transaction-scoped advisory lock on the class while it reads and ranks it, so
// concurrent recomputes of one class run one after the other and the last one sees every committed average.
func (repo *bulletinRepository) RecomputeRanks(ctx context.Context, key bulletin.ClassKey) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		lockKey := strings.Join([]string{key.ClassID, key.TermID, key.AcademicYearID}, "|")
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey); err != nil {
			return errors.Wrap(err, "locking class")
		}

		query, args, err := psql.Select("id", "status", "general_average").From(bulletinsTable).
			Where(sq.Eq{"class_id": key.ClassID, "term_id": key.TermID, "academic_year_id": key.AcademicYearID}).
			Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		var rows []classRankRow
		if err = tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return errors.Wrap(err, "selecting class bulletins")
		}

		class := make([]bulletin.Bulletin, len(rows))
		for i, r := range rows {
			class[i] = bulletin.Bulletin{ID: r.ID, Status: bulletin.Status(r.Status), GeneralAverage: r.GeneralAverage.Ptr()}
		}
		for _, rk := range bulletin.RanksToUpdate(class) {
			upd := psql.Update(bulletinsTable).
				Set("class_rank", nullInt(rk.Rank)).
				Set("total_students_in_class", nullInt(rk.ClassSize)).
				Where(sq.Eq{"id": rk.BulletinID})
			if _, err = exec(ctx, tx, upd); err != nil {
				return errors.Wrap(err, "updating rank")
			}
		}
		return nil
	})
}

func (repo *bulletinRepository) RecordVerification(ctx context.Context, v bulletin.Verification) (bool, error) {
	var first bool
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var bulletinID interface{}
		if v.BulletinID != "" {
			bulletinID = v.BulletinID
		}
		ins := psql.Insert(verificationsTable).
			Columns("id", "bulletin_id", "parent_id", "verification_type", "verification_code",
				"ip_address", "user_agent", "success", "error_message", "created_at").
			Values(uuid.New().String(), bulletinID, v.ParentID, string(v.Type), v.VerificationCode,
				nullString(v.IPAddress), nullString(v.UserAgent), v.Success, nullString(v.ErrorMessage), v.Timestamp.UTC())
		if _, err := exec(ctx, tx, ins); err != nil {
			return errors.Wrap(err, "inserting verification")
		}
		if !v.Success || v.BulletinID == "" {
			return nil
		}

		upd := psql.Update(bulletinsTable).
			Set("parent_verified", true).
			Set("parent_verified_at", v.Timestamp.UTC()).
			Where(sq.Eq{"id": v.BulletinID, "parent_verified": false})
		res, err := exec(ctx, tx, upd)
		if err != nil {
			return errors.Wrap(err, "marking bulletin verified")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "counting updated rows")
		}
		first = n == 1
		return nil
	})
	return first, err
}
