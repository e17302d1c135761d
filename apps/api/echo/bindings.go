package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

var (
	orderingParam = "ordering"
	limitParam    = "limit"
	offsetParam   = "offset"
	maxPageSize   = uint64(500)
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Page binds the `limit` & `offset` query params.
type Page struct {
	core.DBPage
}

func (p *Page) Bind(ctx echo.Context) error {
	parse := func(param string) (uint64, error) {
		val := ctx.QueryParam(param)
		if val == "" {
			return 0, nil
		}
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return 0, core.NewFieldError(param, "must be a positive integer")
		}
		return n, nil
	}

	var err error
	if p.Limit, err = parse(limitParam); err != nil {
		return err
	}
	if p.Offset, err = parse(offsetParam); err != nil {
		return err
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return nil
}

// bindQueryFilter reads the bulletin filters from the query string.
func bindQueryFilter(ctx echo.Context) bulletin.QueryFilter {
	return bulletin.QueryFilter{
		Status:         bulletin.Status(core.CleanString(ctx.QueryParam("status"), true)),
		StudentID:      core.CleanString(ctx.QueryParam("student_id")),
		ClassID:        core.CleanString(ctx.QueryParam("class_id")),
		TermID:         core.CleanString(ctx.QueryParam("term_id")),
		AcademicYearID: core.CleanString(ctx.QueryParam("academic_year_id")),
		SchoolID:       core.CleanString(ctx.QueryParam("school_id")),
		SubmittedBy:    core.CleanString(ctx.QueryParam("submitted_by")),
	}
}
