package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	StudentID  ID
	AnalysisID ID
	ModelID    ID
	PatternID  ID
	MetricKey  ID
)

// String conversions for domain IDs
func (id StudentID) String() string  { return ID(id).String() }
func (id AnalysisID) String() string { return ID(id).String() }
func (id ModelID) String() string    { return ID(id).String() }
func (id PatternID) String() string  { return ID(id).String() }
func (id MetricKey) String() string  { return ID(id).String() }

// ParseStudentID parses a string into StudentID
func ParseStudentID(s string) (StudentID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("student ID cannot be empty")
	}
	return StudentID(s), nil
}

// ParseAnalysisID parses a string into AnalysisID
func ParseAnalysisID(s string) (AnalysisID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("analysis ID cannot be empty")
	}
	return AnalysisID(s), nil
}

// ParseModelID parses a string into ModelID
func ParseModelID(s string) (ModelID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("model ID cannot be empty")
	}
	return ModelID(s), nil
}

// ParseMetricKey parses a string into MetricKey
func ParseMetricKey(s string) (MetricKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("metric key cannot be empty")
	}
	return MetricKey(s), nil
}
