package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates caller misuse: a bad chunk size, an out of
	// range threshold, an unknown tool. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable indicates a transport failure or timeout talking
	// to the embedding service, the vector store or the language model.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// InvalidInput builds an error wrapping ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable wraps err so that errors.Is(err, ErrServiceUnavailable) holds.
// Errors already classified as unavailable or invalid are returned as is.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
}

// PartialIngestionError reports that some ingestion batches failed.
// It is derived from an ingestion report, not returned by the run itself.
type PartialIngestionError struct {
	Failed int
	Total  int
	First  error
}

func (e *PartialIngestionError) Error() string {
	if e.First != nil {
		return fmt.Sprintf("partial ingestion: %d of %d batches failed (first: %v)", e.Failed, e.Total, e.First)
	}
	return fmt.Sprintf("partial ingestion: %d of %d batches failed", e.Failed, e.Total)
}

func (e *PartialIngestionError) Unwrap() error {
	return e.First
}
