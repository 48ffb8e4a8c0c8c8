package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/internal/errors"
)

// Sheet and layout expected in a roster workbook. Grades are a single cell
// of semicolon-separated values so a row stays one student.
const (
	studentsSheet      = "Students"
	interventionsSheet = "Interventions"
	dateLayout         = "2006-01-02"
)

// RosterProvider implements RecordProvider over an .xlsx student roster.
// The workbook is read once on first access and cached; dashboards re-run
// analyses far more often than rosters change.
type RosterProvider struct {
	filePath string

	mu      sync.Mutex
	loaded  bool
	records []student.Record
}

// NewRosterProvider creates a provider for the given workbook path.
func NewRosterProvider(filePath string) *RosterProvider {
	return &RosterProvider{filePath: filePath}
}

// Records returns the full roster batch.
func (p *RosterProvider) Records(ctx context.Context) ([]student.Record, error) {
	if err := p.ensureLoaded(); err != nil {
		return nil, err
	}
	return p.records, nil
}

// Record returns one student by id.
func (p *RosterProvider) Record(ctx context.Context, id core.StudentID) (student.Record, error) {
	if err := p.ensureLoaded(); err != nil {
		return student.Record{}, err
	}
	for _, rec := range p.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return student.Record{}, core.NewNotFoundError("student", id.String())
}

func (p *RosterProvider) ensureLoaded() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}

	f, err := excelize.OpenFile(p.filePath)
	if err != nil {
		return errors.Wrapf(err, "opening roster workbook %s", p.filePath)
	}
	defer f.Close()

	records, err := readStudents(f)
	if err != nil {
		return err
	}
	if err := attachInterventions(f, records); err != nil {
		return err
	}

	ordered := make([]student.Record, 0, len(records))
	rows, _ := f.GetRows(studentsSheet)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if rec, ok := records[strings.TrimSpace(row[0])]; ok {
			ordered = append(ordered, *rec)
		}
	}

	p.records = ordered
	p.loaded = true
	return nil
}

// readStudents parses the Students sheet. Expected columns:
// ID, Grades (semicolon-separated), Attendance, Behavior, Age, GradeLevel,
// Socioeconomic. The first row is a header.
func readStudents(f *excelize.File) (map[string]*student.Record, error) {
	rows, err := f.GetRows(studentsSheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", studentsSheet)
	}

	records := make(map[string]*student.Record)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if len(row) < 7 {
			return nil, errors.InvalidInput(
				fmt.Sprintf("%s row %d has %d columns, expected 7", studentsSheet, i+1, len(row)))
		}

		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}

		grades, err := parseGrades(row[1])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing grades for student %s", id)
		}
		attendance, err := parseFloat(row[2], "attendance", i+1)
		if err != nil {
			return nil, err
		}
		behavior, err := parseFloat(row[3], "behavior", i+1)
		if err != nil {
			return nil, err
		}
		age, err := parseInt(row[4], "age", i+1)
		if err != nil {
			return nil, err
		}
		gradeLevel, err := parseInt(row[5], "grade level", i+1)
		if err != nil {
			return nil, err
		}
		socioeconomic, err := parseFloat(row[6], "socioeconomic index", i+1)
		if err != nil {
			return nil, err
		}

		records[id] = &student.Record{
			ID:            core.StudentID(id),
			Grades:        grades,
			Attendance:    attendance,
			Behavior:      behavior,
			Age:           age,
			GradeLevel:    gradeLevel,
			Socioeconomic: socioeconomic,
		}
	}
	return records, nil
}

// attachInterventions parses the optional Interventions sheet. Expected
// columns: StudentID, Type, Date (YYYY-MM-DD), Outcome.
func attachInterventions(f *excelize.File, records map[string]*student.Record) error {
	rows, err := f.GetRows(interventionsSheet)
	if err != nil {
		// The sheet is optional; a roster without intervention history is valid.
		return nil
	}

	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if len(row) < 4 {
			return errors.InvalidInput(
				fmt.Sprintf("%s row %d has %d columns, expected 4", interventionsSheet, i+1, len(row)))
		}

		id := strings.TrimSpace(row[0])
		rec, ok := records[id]
		if !ok {
			continue
		}

		date, err := time.Parse(dateLayout, strings.TrimSpace(row[2]))
		if err != nil {
			return errors.Wrapf(err, "parsing intervention date on %s row %d", interventionsSheet, i+1)
		}
		outcome, err := parseFloat(row[3], "intervention outcome", i+1)
		if err != nil {
			return err
		}

		rec.Interventions = append(rec.Interventions, student.InterventionRecord{
			Type:    student.InterventionType(strings.TrimSpace(row[1])),
			Date:    core.NewTimestamp(date),
			Outcome: outcome,
		})
	}
	return nil
}

func parseGrades(cell string) ([]float64, error) {
	parts := strings.Split(cell, ";")
	grades := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid grade value %q", part)
		}
		grades = append(grades, v)
	}
	return grades, nil
}

func parseFloat(cell, field string, row int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, errors.InvalidInput(fmt.Sprintf("invalid %s %q on row %d", field, cell, row))
	}
	return v, nil
}

func parseInt(cell, field string, row int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil {
		return 0, errors.InvalidInput(fmt.Sprintf("invalid %s %q on row %d", field, cell, row))
	}
	return v, nil
}
