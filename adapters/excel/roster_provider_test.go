package excel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"edupulse/domain/core"
	"edupulse/domain/student"
)

func writeRoster(t *testing.T, students [][]interface{}, interventions [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", studentsSheet))
	header := []interface{}{"ID", "Grades", "Attendance", "Behavior", "Age", "GradeLevel", "Socioeconomic"}
	require.NoError(t, f.SetSheetRow(studentsSheet, "A1", &header))
	for i, row := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(studentsSheet, cell, &row))
	}

	if interventions != nil {
		_, err := f.NewSheet(interventionsSheet)
		require.NoError(t, err)
		ivHeader := []interface{}{"StudentID", "Type", "Date", "Outcome"}
		require.NoError(t, f.SetSheetRow(interventionsSheet, "A1", &ivHeader))
		for i, row := range interventions {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(interventionsSheet, cell, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRecords_ParsesRosterSheet(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"student-001", "7.5; 8.0; 6.5", 92.0, 8.0, 14, 8, 6.0},
		{"student-002", "4.0; 3.5", 68.5, 5.0, 15, 9, 3.5},
	}, nil)

	records, err := NewRosterProvider(path).Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, core.StudentID("student-001"), first.ID)
	assert.Equal(t, []float64{7.5, 8.0, 6.5}, first.Grades)
	assert.Equal(t, 92.0, first.Attendance)
	assert.Equal(t, 8.0, first.Behavior)
	assert.Equal(t, 14, first.Age)
	assert.Equal(t, 8, first.GradeLevel)
	assert.Equal(t, 6.0, first.Socioeconomic)
	assert.Empty(t, first.Interventions)

	assert.Equal(t, core.StudentID("student-002"), records[1].ID)
}

func TestRecords_AttachesInterventions(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"student-001", "7.5", 92.0, 8.0, 14, 8, 6.0},
	}, [][]interface{}{
		{"student-001", "tutoring", "2025-03-10", 8.5},
		{"student-001", "counseling", "2025-04-02", 6.0},
		{"student-999", "tutoring", "2025-03-10", 9.0}, // unknown student, ignored
	})

	records, err := NewRosterProvider(path).Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	ivs := records[0].Interventions
	require.Len(t, ivs, 2)
	assert.Equal(t, student.InterventionTutoring, ivs[0].Type)
	assert.Equal(t, 8.5, ivs[0].Outcome)
	assert.Equal(t, "2025-03-10", ivs[0].Date.Time().Format("2006-01-02"))
}

func TestRecord_LookupByID(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"student-001", "7.5", 92.0, 8.0, 14, 8, 6.0},
		{"student-002", "4.0", 68.5, 5.0, 15, 9, 3.5},
	}, nil)
	p := NewRosterProvider(path)

	rec, err := p.Record(context.Background(), core.StudentID("student-002"))
	require.NoError(t, err)
	assert.Equal(t, 68.5, rec.Attendance)

	_, err = p.Record(context.Background(), core.StudentID("absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestRecords_MissingWorkbook(t *testing.T) {
	_, err := NewRosterProvider(filepath.Join(t.TempDir(), "missing.xlsx")).Records(context.Background())
	require.Error(t, err)
}

func TestRecords_MalformedGrades(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"student-001", "7.5; oops", 92.0, 8.0, 14, 8, 6.0},
	}, nil)

	_, err := NewRosterProvider(path).Records(context.Background())
	require.Error(t, err)
}
