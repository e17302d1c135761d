package inmemdb

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

type bulletinRepository struct {
	db *DB
}

var _ bulletin.Repository = (*bulletinRepository)(nil) // interface compliance check

func NewBulletinRepository(db *DB) *bulletinRepository {
	return &bulletinRepository{db: db}
}

func clone(b bulletin.Bulletin, withGrades bool) bulletin.Bulletin {
	if b.GeneralAverage != nil {
		avg := *b.GeneralAverage
		b.GeneralAverage = &avg
	}
	if withGrades && b.Grades != nil {
		b.Grades = append([]bulletin.Grade(nil), b.Grades...)
	} else if !withGrades {
		b.Grades = nil
	}
	return b
}

func (repo *bulletinRepository) Create(_ context.Context, b bulletin.Bulletin) (bulletin.Bulletin, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.bulletins {
		if other.StudentID == b.StudentID && other.ClassID == b.ClassID &&
			other.TermID == b.TermID && other.AcademicYearID == b.AcademicYearID {
			return bulletin.Bulletin{}, bulletin.ErrExists
		}
	}

	b.ID = uuid.New().String()
	if b.Version == 0 {
		b.Version = 1
	}
	for i := range b.Grades {
		b.Grades[i].ID = uuid.New().String()
		b.Grades[i].BulletinID = b.ID
	}
	stored := clone(b, true)
	repo.db.bulletins[b.ID] = &stored
	return clone(stored, true), nil
}

func (repo *bulletinRepository) GetByID(_ context.Context, id string) (bulletin.Bulletin, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.bulletins[id]; ok {
		return clone(*b, true), nil
	}
	return bulletin.Bulletin{}, bulletin.ErrNotFound
}

func (repo *bulletinRepository) findBy(match func(b *bulletin.Bulletin) bool) (bulletin.Bulletin, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, b := range repo.db.bulletins {
		if match(b) {
			return clone(*b, true), nil
		}
	}
	return bulletin.Bulletin{}, bulletin.ErrNotFound
}

func (repo *bulletinRepository) GetByTrackingNumber(_ context.Context, trackingNumber string) (bulletin.Bulletin, error) {
	if trackingNumber == "" {
		return bulletin.Bulletin{}, bulletin.ErrNotFound
	}
	return repo.findBy(func(b *bulletin.Bulletin) bool { return b.TrackingNumber == trackingNumber })
}

func (repo *bulletinRepository) GetByVerificationCode(_ context.Context, code string) (bulletin.Bulletin, error) {
	if code == "" {
		return bulletin.Bulletin{}, bulletin.ErrNotFound
	}
	return repo.findBy(func(b *bulletin.Bulletin) bool { return b.VerificationCode == code })
}

func (repo *bulletinRepository) Query(
	_ context.Context,
	filter bulletin.QueryFilter,
	ordering []core.DBOrdering,
	page core.DBPage,
) ([]bulletin.Bulletin, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	matches := func(val, want string) bool { return want == "" || val == want }

	bulletins := make([]bulletin.Bulletin, 0)
	for _, b := range repo.db.bulletins {
		if matches(string(b.Status), string(filter.Status)) &&
			matches(b.StudentID, filter.StudentID) &&
			matches(b.ClassID, filter.ClassID) &&
			matches(b.TermID, filter.TermID) &&
			matches(b.AcademicYearID, filter.AcademicYearID) &&
			matches(b.SchoolID, filter.SchoolID) &&
			matches(b.SubmittedBy, filter.SubmittedBy) {
			bulletins = append(bulletins, clone(*b, false))
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(bulletins, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(bulletins[i], bulletins[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return bulletins[i].ID < bulletins[j].ID
	})

	if page.Offset > 0 {
		if page.Offset >= uint64(len(bulletins)) {
			return []bulletin.Bulletin{}, nil
		}
		bulletins = bulletins[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < uint64(len(bulletins)) {
		bulletins = bulletins[:page.Limit]
	}
	return bulletins, nil
}

// compareField compares the bulletin fields mapped to a DB column. Missing values sort first.
func compareField(a, b bulletin.Bulletin, column string) int {
	fieldName := map[string]string{
		"created_at":      "CreatedAt",
		"updated_at":      "UpdatedAt",
		"submitted_at":    "SubmittedAt",
		"approved_at":     "ApprovedAt",
		"rejected_at":     "RejectedAt",
		"sent_at":         "SentAt",
		"student_id":      "StudentID",
		"general_average": "GeneralAverage",
		"class_rank":      "ClassRank",
		"status":          "Status",
	}[column]
	if fieldName == "" {
		return 0
	}
	va := reflect.ValueOf(a).FieldByName(fieldName).Interface()
	vb := reflect.ValueOf(b).FieldByName(fieldName).Interface()

	switch x := va.(type) {
	case time.Time:
		y := vb.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	case *float64:
		y := vb.(*float64)
		switch {
		case x == nil && y == nil:
			return 0
		case x == nil:
			return -1
		case y == nil:
			return 1
		case *x < *y:
			return -1
		case *x > *y:
			return 1
		}
		return 0
	case int:
		return x - vb.(int)
	case string:
		return strings.Compare(x, vb.(string))
	case bulletin.Status:
		return strings.Compare(string(x), string(vb.(bulletin.Status)))
	}
	return 0
}

func (repo *bulletinRepository) Approvals(_ context.Context, bulletinID string) ([]bulletin.Approval, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]bulletin.Approval{}, repo.db.approvals[bulletinID]...), nil
}

// compareAndSwap checks the stored version of b. The caller must hold the write lock.
func (repo *bulletinRepository) compareAndSwap(b bulletin.Bulletin) (*bulletin.Bulletin, error) {
	stored, ok := repo.db.bulletins[b.ID]
	if !ok {
		return nil, bulletin.ErrNotFound
	}
	if stored.Version != b.Version {
		return nil, bulletin.ErrConflict
	}
	return stored, nil
}

func (repo *bulletinRepository) Transition(_ context.Context, b bulletin.Bulletin, a bulletin.Approval) (bulletin.Bulletin, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, err := repo.compareAndSwap(b)
	if err != nil {
		return bulletin.Bulletin{}, err
	}
	for id, other := range repo.db.bulletins {
		if id == b.ID {
			continue
		}
		if (b.TrackingNumber != "" && other.TrackingNumber == b.TrackingNumber) ||
			(b.VerificationCode != "" && other.VerificationCode == b.VerificationCode) {
			return bulletin.Bulletin{}, bulletin.ErrDuplicateCode
		}
	}

	// grades and ranks are not part of a transition
	next := clone(b, false)
	next.Grades = stored.Grades
	next.ClassRank = stored.ClassRank
	next.TotalStudentsInClass = stored.TotalStudentsInClass
	next.ParentVerified = stored.ParentVerified
	next.ParentVerifiedAt = stored.ParentVerifiedAt
	next.Version = stored.Version + 1
	*stored = next

	a.ID = uuid.New().String()
	a.BulletinID = b.ID
	repo.db.approvals[b.ID] = append(repo.db.approvals[b.ID], a)
	return clone(*stored, true), nil
}

func (repo *bulletinRepository) SaveGrades(_ context.Context, b bulletin.Bulletin) (bulletin.Bulletin, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, err := repo.compareAndSwap(b)
	if err != nil {
		return bulletin.Bulletin{}, err
	}

	grades := make([]bulletin.Grade, len(b.Grades))
	for i, g := range b.Grades {
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		g.BulletinID = b.ID
		grades[i] = g
	}
	stored.Grades = grades
	stored.TotalPoints = b.TotalPoints
	stored.TotalCoefficients = b.TotalCoefficients
	stored.GeneralAverage = clone(b, false).GeneralAverage
	stored.SecurityHash = b.SecurityHash
	stored.UpdatedAt = b.UpdatedAt
	stored.Version++
	return clone(*stored, true), nil
}

func (repo *bulletinRepository) RecomputeRanks(_ context.Context, key bulletin.ClassKey) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var class []bulletin.Bulletin
	for _, b := range repo.db.bulletins {
		if b.ClassKey() == key {
			class = append(class, clone(*b, false))
		}
	}
	for _, r := range bulletin.RanksToUpdate(class) {
		b := repo.db.bulletins[r.BulletinID]
		b.ClassRank = r.Rank
		b.TotalStudentsInClass = r.ClassSize
	}
	return nil
}

func (repo *bulletinRepository) RecordVerification(_ context.Context, v bulletin.Verification) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	v.ID = uuid.New().String()
	repo.db.verifications = append(repo.db.verifications, v)

	if !v.Success || v.BulletinID == "" {
		return false, nil
	}
	b, ok := repo.db.bulletins[v.BulletinID]
	if !ok || b.ParentVerified {
		return false, nil
	}
	b.ParentVerified = true
	b.ParentVerifiedAt = v.Timestamp
	return true, nil
}
