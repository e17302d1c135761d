package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings keeps the orderings whose field is allowed; allowed maps API field names to DB columns.
func FilterOrderings(ords []DBOrdering, allowed map[string]string) []DBOrdering {
	kept := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if col, ok := allowed[strings.ToLower(ord.Field)]; ok {
			kept = append(kept, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return kept
}

// DBPage limits a query result. A zero Limit means no limit.
type DBPage struct {
	Limit  uint64
	Offset uint64
}
