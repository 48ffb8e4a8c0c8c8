package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrStudentNotFound  = fmt.Errorf("%w: student", ErrNotFound)
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)
	ErrModelNotFound    = fmt.Errorf("%w: model", ErrNotFound)

	// Input errors
	ErrEmptyGradeSequence = errors.New("grade sequence is empty")
	ErrInsufficientData   = errors.New("insufficient data for analysis")

	// Model lifecycle errors
	ErrModelNotTrained    = errors.New("model not trained")
	ErrTrainingInProgress = errors.New("training already in progress")

	// Numeric errors
	ErrSimilarityUndefined     = errors.New("similarity undefined for zero-norm vector")
	ErrInvalidFeatureDimension = errors.New("feature dimension mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewInsufficientDataError(metric string, got, want int) error {
	return fmt.Errorf("%w: metric %s has %d samples, need at least %d", ErrInsufficientData, metric, got, want)
}

func NewDimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d components, model expects %d", ErrInvalidFeatureDimension, got, want)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsModelStateError(err error) bool {
	return errors.Is(err, ErrModelNotTrained) ||
		errors.Is(err, ErrTrainingInProgress)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyGradeSequence) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInvalidFeatureDimension)
}
