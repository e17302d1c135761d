package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

type guardianRepository struct {
	db *sqlx.DB
}

var _ bulletin.GuardianRepository = (*guardianRepository)(nil)

func NewGuardianRepository(db *sqlx.DB) *guardianRepository {
	return &guardianRepository{db: db}
}

func (repo *guardianRepository) AddGuardian(ctx context.Context, g bulletin.Guardian) (bulletin.Guardian, error) {
	g.ID = uuid.New().String()
	if g.Language == "" {
		g.Language = "fr"
	}
	ins := psql.Insert(guardiansTable).
		Columns("id", "student_id", "name", "email", "phone", "language").
		Values(g.ID, g.StudentID, g.Name, nullString(g.Email), nullString(g.Phone), g.Language)
	if _, err := exec(ctx, repo.db, ins); err != nil {
		return bulletin.Guardian{}, errors.Wrap(err, "inserting guardian")
	}
	return g, nil
}

func (repo *guardianRepository) GuardiansOf(ctx context.Context, studentID string) ([]bulletin.Guardian, error) {
	query, args, err := psql.Select("id", "student_id", "name", "email", "phone", "language").
		From(guardiansTable).Where(sq.Eq{"student_id": studentID}).OrderBy("name").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []guardianRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}
	guardians := make([]bulletin.Guardian, 0, len(rows))
	for _, r := range rows {
		guardians = append(guardians, r.guardian())
	}
	return guardians, nil
}
