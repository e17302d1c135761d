package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

var (
	requiredColumns = []string{"student_id", "subject_id", "grade"}

	// accepted header spellings
	columnAliases = map[string]string{
		"student":     "student_id",
		"eleve":       "student_id",
		"subject":     "subject_id",
		"matiere":     "subject_id",
		"teacher":     "teacher_id",
		"note":        "grade",
		"coef":        "coefficient",
		"comment":     "teacher_comment",
		"commentaire": "teacher_comment",
	}
)

// ParseGradeSheet reads the first worksheet of an .xlsx class sheet: a header row followed by
// one row per student and subject. Blank rows are ignored; coefficients default to 1.
func ParseGradeSheet(r io.Reader) ([]bulletin.SheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewFieldError("file", "not a valid .xlsx file")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewFieldError("file", "the workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading sheet rows")
	}
	if len(rows) < 2 {
		return nil, core.NewFieldError("file", "the sheet has no grade row")
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			return nil, core.NewFieldError("file", fmt.Sprintf("missing column %q", col))
		}
	}

	sheet := make([]bulletin.SheetRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		get := func(col string) string {
			if idx, ok := cols[col]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		sr := bulletin.SheetRow{
			Row:            rowNum,
			StudentID:      get("student_id"),
			SubjectID:      get("subject_id"),
			TeacherID:      get("teacher_id"),
			Coefficient:    1,
			TeacherComment: get("teacher_comment"),
		}
		if sr.StudentID == "" || sr.SubjectID == "" {
			return nil, core.NewFieldError("file", fmt.Sprintf("row %d: student_id and subject_id are required", rowNum))
		}
		if sr.Grade, err = parseNumber(get("grade")); err != nil {
			return nil, core.NewFieldError("file", fmt.Sprintf("row %d: invalid grade %q", rowNum, get("grade")))
		}
		if c := get("coefficient"); c != "" {
			if sr.Coefficient, err = parseNumber(c); err != nil {
				return nil, core.NewFieldError("file", fmt.Sprintf("row %d: invalid coefficient %q", rowNum, c))
			}
		}
		sheet = append(sheet, sr)
	}
	return sheet, nil
}

// parseNumber accepts decimal commas ("14,5").
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
