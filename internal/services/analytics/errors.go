package analytics

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData  = errors.New("insufficient data")
	ErrDegenerateFeature = errors.New("degenerate feature")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// InsufficientDataError reports how many complete observations were needed.
// It matches ErrInsufficientData with errors.Is.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d observations, got %d", e.Required, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
