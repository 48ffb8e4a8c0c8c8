package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/ports"
)

// RecordProviderImpl implements RecordProvider for PostgreSQL
type RecordProviderImpl struct {
	db *sqlx.DB
}

// NewRecordProvider creates a new PostgreSQL record provider
func NewRecordProvider(db *sqlx.DB) ports.RecordProvider {
	return &RecordProviderImpl{db: db}
}

type studentRow struct {
	ID            string  `db:"id"`
	Attendance    float64 `db:"attendance"`
	Behavior      float64 `db:"behavior"`
	Age           int     `db:"age"`
	GradeLevel    int     `db:"grade_level"`
	Socioeconomic float64 `db:"socioeconomic"`
}

type gradeRow struct {
	StudentID string  `db:"student_id"`
	Grade     float64 `db:"grade"`
}

type interventionRow struct {
	StudentID string    `db:"student_id"`
	Type      string    `db:"type"`
	Date      time.Time `db:"date"`
	Outcome   float64   `db:"outcome"`
}

// Records returns the full student batch with grades and intervention
// history attached, in stable id order.
func (r *RecordProviderImpl) Records(ctx context.Context) ([]student.Record, error) {
	var rows []studentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, attendance, behavior, age, grade_level, socioeconomic
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}

	var grades []gradeRow
	err = r.db.SelectContext(ctx, &grades, `
		SELECT student_id, grade
		FROM grades
		ORDER BY student_id, position
	`)
	if err != nil {
		return nil, err
	}

	var interventions []interventionRow
	err = r.db.SelectContext(ctx, &interventions, `
		SELECT student_id, type, date, outcome
		FROM interventions
		ORDER BY student_id, date
	`)
	if err != nil {
		return nil, err
	}

	gradesByStudent := make(map[string][]float64)
	for _, g := range grades {
		gradesByStudent[g.StudentID] = append(gradesByStudent[g.StudentID], g.Grade)
	}
	ivsByStudent := make(map[string][]student.InterventionRecord)
	for _, iv := range interventions {
		ivsByStudent[iv.StudentID] = append(ivsByStudent[iv.StudentID], student.InterventionRecord{
			Type:    student.InterventionType(iv.Type),
			Date:    core.NewTimestamp(iv.Date),
			Outcome: iv.Outcome,
		})
	}

	records := make([]student.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, assembleRecord(row, gradesByStudent[row.ID], ivsByStudent[row.ID]))
	}
	return records, nil
}

// Record returns a single student record by id.
func (r *RecordProviderImpl) Record(ctx context.Context, id core.StudentID) (student.Record, error) {
	var row studentRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, attendance, behavior, age, grade_level, socioeconomic
		FROM students
		WHERE id = $1
	`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Record{}, core.NewNotFoundError("student", id.String())
		}
		return student.Record{}, err
	}

	var grades []gradeRow
	err = r.db.SelectContext(ctx, &grades, `
		SELECT student_id, grade
		FROM grades
		WHERE student_id = $1
		ORDER BY position
	`, id.String())
	if err != nil {
		return student.Record{}, err
	}

	var interventions []interventionRow
	err = r.db.SelectContext(ctx, &interventions, `
		SELECT student_id, type, date, outcome
		FROM interventions
		WHERE student_id = $1
		ORDER BY date
	`, id.String())
	if err != nil {
		return student.Record{}, err
	}

	gradeValues := make([]float64, 0, len(grades))
	for _, g := range grades {
		gradeValues = append(gradeValues, g.Grade)
	}
	ivs := make([]student.InterventionRecord, 0, len(interventions))
	for _, iv := range interventions {
		ivs = append(ivs, student.InterventionRecord{
			Type:    student.InterventionType(iv.Type),
			Date:    core.NewTimestamp(iv.Date),
			Outcome: iv.Outcome,
		})
	}
	return assembleRecord(row, gradeValues, ivs), nil
}

func assembleRecord(row studentRow, grades []float64, interventions []student.InterventionRecord) student.Record {
	return student.Record{
		ID:            core.StudentID(row.ID),
		Grades:        grades,
		Attendance:    row.Attendance,
		Behavior:      row.Behavior,
		Age:           row.Age,
		GradeLevel:    row.GradeLevel,
		Socioeconomic: row.Socioeconomic,
		Interventions: interventions,
	}
}
