package gamestate

import "fmt"

// ExtractionError wraps a failure (error or panic) raised by a state provider.
type ExtractionError struct {
	Context ContextTag
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Context, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Code is the short tag shown in status lines.
func (e *ExtractionError) Code() string {
	return "extraction_error"
}
