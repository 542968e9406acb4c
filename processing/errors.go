package processing

import (
	"errors"
	"fmt"

	"github.com/coreybb/quire/models"
)

var (
	ErrForbidden            = errors.New("not authorized to access this project")
	ErrInvalidFormat        = errors.New("invalid format")
	ErrGenerationInProgress = errors.New("generation already in progress")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrQueueFull            = errors.New("generation queue is full")
)

// GenerationError reports a run that was accepted and then failed during
// assembly, rendering or storage. The failure has already been recorded on
// the project.
type GenerationError struct {
	Format models.BookFormat
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Format, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}
