package bulletin

import (
	"sort"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

// Summary holds the aggregated values of a set of grades.
type Summary struct {
	TotalPoints       float64
	TotalCoefficients float64
	Average           float64
}

// Points returns grade × coefficient rounded to 2 decimals.
func Points(grade, coefficient float64) float64 {
	return core.Round2(grade * coefficient)
}

// ComputeAverage returns the weighted average Σ(grade×coefficient)/Σcoefficient rounded to 2 decimals.
func ComputeAverage(grades []Grade) (Summary, error) {
	var points, coefs float64
	for _, g := range grades {
		points += g.Grade * g.Coefficient
		coefs += g.Coefficient
	}
	if coefs <= 0 {
		return Summary{}, ErrInvalidGradeSet
	}
	return Summary{
		TotalPoints:       core.Round2(points),
		TotalCoefficients: core.Round2(coefs),
		Average:           core.Round2(points / coefs),
	}, nil
}

// summarize refreshes the points of b's grades and its totals. A bulletin without grades has no average.
func summarize(b *Bulletin) {
	for i := range b.Grades {
		b.Grades[i].Points = Points(b.Grades[i].Grade, b.Grades[i].Coefficient)
	}
	sum, err := ComputeAverage(b.Grades)
	if err != nil {
		b.TotalPoints, b.TotalCoefficients, b.GeneralAverage = 0, 0, nil
		return
	}
	avg := sum.Average
	b.TotalPoints = sum.TotalPoints
	b.TotalCoefficients = sum.TotalCoefficients
	b.GeneralAverage = &avg
}

// Rank is the position of a bulletin within its class.
type Rank struct {
	BulletinID string
	Rank       int
	ClassSize  int
}

// ComputeRanks ranks the bulletins of one class by descending general average using standard competition
// ranking: equal averages share a rank and the next rank skips accordingly (18, 15, 15, 12 -> 1, 2, 2, 4).
// Bulletins without an average are not ranked and do not count in the class size.
func ComputeRanks(bulletins []Bulletin) []Rank {
	ranked := make([]Bulletin, 0, len(bulletins))
	for _, b := range bulletins {
		if b.GeneralAverage != nil {
			ranked = append(ranked, b)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].GeneralAverage > *ranked[j].GeneralAverage
	})

	ranks := make([]Rank, 0, len(ranked))
	for i, b := range ranked {
		rank := i + 1
		if i > 0 && *b.GeneralAverage == *ranked[i-1].GeneralAverage {
			rank = ranks[i-1].Rank
		}
		ranks = append(ranks, Rank{BulletinID: b.ID, Rank: rank, ClassSize: len(ranked)})
	}
	return ranks
}

// RanksToUpdate ranks a class and drops the ranks of sent bulletins, which keep the rank they were sent with.
func RanksToUpdate(class []Bulletin) []Rank {
	sent := make(map[string]bool)
	for _, b := range class {
		if b.Status == StatusSent {
			sent[b.ID] = true
		}
	}
	ranks := ComputeRanks(class)
	toUpdate := make([]Rank, 0, len(ranks))
	for _, r := range ranks {
		if !sent[r.BulletinID] {
			toUpdate = append(toUpdate, r)
		}
	}
	return toUpdate
}
