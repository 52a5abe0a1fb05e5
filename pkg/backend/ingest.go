package backend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/marshallshelly/databridge/pkg/model"
)

// studentColumns are the CSV header names an upload must carry, matched
// case-insensitively.
var studentColumns = []string{"studentName", "age", "deptName"}

// ingestReport is the response body of a student upload.
type ingestReport struct {
	RecordsInserted int      `json:"recordsInserted"`
	Skipped         int      `json:"skipped"`
	RowErrors       []string `json:"rowErrors,omitempty"`

	invalid *multierror.Error
}

func (r *ingestReport) reject(line int, err error) {
	err = fmt.Errorf("row %d: %w", line, err)
	r.invalid = multierror.Append(r.invalid, err)
	r.RowErrors = append(r.RowErrors, err.Error())
}

// ingestStudents inserts every valid, new student from a CSV document.
// Rows that already exist (in the table or earlier in the file) are skipped;
// invalid rows are reported and skipped.
func ingestStudents(ctx context.Context, table Table[model.Student], r io.Reader, departments []string) (*ingestReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, badRequest("The uploaded file is empty")
	}
	if err != nil {
		return nil, badRequest("The uploaded file is not valid CSV: %v", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	existing, err := table.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ingestReport{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.reject(perr.Line, perr.Err)
				continue
			}
			return nil, err
		}
		if blank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseStudent(row, index)
		if err != nil {
			report.reject(line, err)
			continue
		}
		if herr := studentPolicy.check(&rec, nil, 0, departments); herr != nil {
			report.reject(line, rowError(herr))
			continue
		}
		if duplicateStudent(rec, existing) {
			report.Skipped++
			continue
		}

		id, err := table.Insert(ctx, rec)
		if err != nil {
			return nil, err
		}
		rec.ID = id
		existing = append(existing, rec)
		report.RecordsInserted++
	}
	return report, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(studentColumns))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for _, col := range studentColumns {
			if strings.EqualFold(name, col) {
				index[col] = i
			}
		}
	}
	var missing []string
	for _, col := range studentColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, badRequest("Missing column(s): %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseStudent(row []string, index map[string]int) (model.Student, error) {
	cell := func(col string) string {
		if i := index[col]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := model.Student{
		StudentName: cell("studentName"),
		DeptName:    cell("deptName"),
	}
	if text := cell("age"); text != "" {
		age, err := strconv.Atoi(text)
		if err != nil {
			return rec, fmt.Errorf("age %q is not a number", text)
		}
		rec.Age = age
	}
	return rec, nil
}

// rowError flattens a rule violation into a single error for the report.
func rowError(herr *HTTPError) error {
	if len(herr.Fields) == 0 {
		return errors.New(herr.Message)
	}
	var merr *multierror.Error
	for _, field := range slices.Sorted(maps.Keys(herr.Fields)) {
		for _, msg := range herr.Fields[field] {
			merr = multierror.Append(merr, errors.New(msg))
		}
	}
	merr.ErrorFormat = func(errs []error) string {
		parts := make([]string, len(errs))
		for i, e := range errs {
			parts[i] = e.Error()
		}
		return strings.Join(parts, "; ")
	}
	return merr
}

func duplicateStudent(rec model.Student, existing []model.Student) bool {
	for _, other := range existing {
		if studentPolicy.same(rec, other) {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
