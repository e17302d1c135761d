package bulletin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(f float64) *float64 { return &f }

func TestComputeAverage(t *testing.T) {
	tests := []struct {
		name    string
		grades  []Grade
		want    Summary
		wantErr error
	}{
		{name: "no grades", wantErr: ErrInvalidGradeSet},
		{
			name:    "zero coefficients",
			grades:  []Grade{{Grade: 12, Coefficient: 0}},
			wantErr: ErrInvalidGradeSet,
		},
		{
			name:   "single grade",
			grades: []Grade{{Grade: 14.5, Coefficient: 2}},
			want:   Summary{TotalPoints: 29, TotalCoefficients: 2, Average: 14.5},
		},
		{
			name: "weighted",
			grades: []Grade{
				{SubjectID: "math", Grade: 15, Coefficient: 4},
				{SubjectID: "french", Grade: 12, Coefficient: 3},
				{SubjectID: "sport", Grade: 18, Coefficient: 1},
			},
			want: Summary{TotalPoints: 114, TotalCoefficients: 8, Average: 14.25},
		},
		{
			name: "rounded to 2 decimals",
			grades: []Grade{
				{Grade: 10, Coefficient: 1},
				{Grade: 11, Coefficient: 1},
				{Grade: 11, Coefficient: 1},
			},
			want: Summary{TotalPoints: 32, TotalCoefficients: 3, Average: 10.67},
		},
		{
			name: "decimal coefficients",
			grades: []Grade{
				{Grade: 16.25, Coefficient: 1.5},
				{Grade: 9.75, Coefficient: 0.5},
			},
			want: Summary{TotalPoints: 29.25, TotalCoefficients: 2, Average: 14.63},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeAverage(tt.grades)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummarize(t *testing.T) {
	b := Bulletin{Grades: []Grade{
		{SubjectID: "math", Grade: 12.5, Coefficient: 3},
		{SubjectID: "history", Grade: 8, Coefficient: 2},
	}}
	summarize(&b)

	assert.Equal(t, 37.5, b.Grades[0].Points)
	assert.Equal(t, 16.0, b.Grades[1].Points)
	assert.Equal(t, 53.5, b.TotalPoints)
	assert.Equal(t, 5.0, b.TotalCoefficients)
	require.NotNil(t, b.GeneralAverage)
	assert.Equal(t, 10.7, *b.GeneralAverage)

	b.Grades = nil
	summarize(&b)
	assert.Nil(t, b.GeneralAverage)
	assert.Zero(t, b.TotalPoints)
}

func TestComputeRanks(t *testing.T) {
	tests := []struct {
		name      string
		bulletins []Bulletin
		want      []Rank
	}{
		{name: "empty", want: []Rank{}},
		{
			name: "ties share a rank",
			bulletins: []Bulletin{
				{ID: "b", GeneralAverage: fptr(15)},
				{ID: "a", GeneralAverage: fptr(18)},
				{ID: "c", GeneralAverage: fptr(15)},
			},
			want: []Rank{
				{BulletinID: "a", Rank: 1, ClassSize: 3},
				{BulletinID: "b", Rank: 2, ClassSize: 3},
				{BulletinID: "c", Rank: 2, ClassSize: 3},
			},
		},
		{
			name: "rank after a tie skips",
			bulletins: []Bulletin{
				{ID: "a", GeneralAverage: fptr(18)},
				{ID: "b", GeneralAverage: fptr(15)},
				{ID: "c", GeneralAverage: fptr(15)},
				{ID: "d", GeneralAverage: fptr(12.5)},
			},
			want: []Rank{
				{BulletinID: "a", Rank: 1, ClassSize: 4},
				{BulletinID: "b", Rank: 2, ClassSize: 4},
				{BulletinID: "c", Rank: 2, ClassSize: 4},
				{BulletinID: "d", Rank: 4, ClassSize: 4},
			},
		},
		{
			name: "bulletins without average are not ranked",
			bulletins: []Bulletin{
				{ID: "a"},
				{ID: "b", GeneralAverage: fptr(9)},
				{ID: "c", GeneralAverage: fptr(11)},
			},
			want: []Rank{
				{BulletinID: "c", Rank: 1, ClassSize: 2},
				{BulletinID: "b", Rank: 2, ClassSize: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeRanks(tt.bulletins))
		})
	}
}

func TestRanksToUpdate(t *testing.T) {
	class := []Bulletin{
		{ID: "a", Status: StatusSent, GeneralAverage: fptr(18)},
		{ID: "b", Status: StatusApproved, GeneralAverage: fptr(15)},
		{ID: "c", Status: StatusDraft, GeneralAverage: fptr(12)},
	}
	assert.Equal(t, []Rank{
		{BulletinID: "b", Rank: 2, ClassSize: 3},
		{BulletinID: "c", Rank: 3, ClassSize: 3},
	}, RanksToUpdate(class))
}
