package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

type guardianRepository struct {
	db *DB
}

var _ bulletin.GuardianRepository = (*guardianRepository)(nil)

func NewGuardianRepository(db *DB) *guardianRepository {
	return &guardianRepository{db: db}
}

func (repo *guardianRepository) AddGuardian(_ context.Context, g bulletin.Guardian) (bulletin.Guardian, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g.ID = uuid.New().String()
	if g.Language == "" {
		g.Language = "fr"
	}
	repo.db.guardians[g.StudentID] = append(repo.db.guardians[g.StudentID], g)
	return g, nil
}

func (repo *guardianRepository) GuardiansOf(_ context.Context, studentID string) ([]bulletin.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]bulletin.Guardian{}, repo.db.guardians[studentID]...), nil
}
