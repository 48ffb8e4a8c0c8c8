package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_UniqueAndNonEmpty(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, id.IsEmpty())
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewID_TimeOrdered(t *testing.T) {
	// UUID v7 encodes a millisecond timestamp prefix, so ids generated in
	// sequence sort lexicographically in generation order almost always.
	first := NewID()
	last := NewID()
	assert.LessOrEqual(t, first.String(), last.String())
}

func TestParseStudentID(t *testing.T) {
	id, err := ParseStudentID("student-001")
	require.NoError(t, err)
	assert.Equal(t, StudentID("student-001"), id)

	_, err = ParseStudentID("")
	assert.Error(t, err)
	_, err = ParseStudentID("   ")
	assert.Error(t, err)
}

func TestParseAnalysisID(t *testing.T) {
	id, err := ParseAnalysisID("analysis-0001")
	require.NoError(t, err)
	assert.Equal(t, AnalysisID("analysis-0001"), id)

	_, err = ParseAnalysisID("")
	assert.Error(t, err)
}

func TestParseModelID(t *testing.T) {
	id, err := ParseModelID("default")
	require.NoError(t, err)
	assert.Equal(t, ModelID("default"), id)

	_, err = ParseModelID(" ")
	assert.Error(t, err)
}
