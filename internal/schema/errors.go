package schema

import "fmt"

// AcquisitionError is a fatal failure to obtain a schema. It is surfaced
// verbatim and never retried.
type AcquisitionError struct {
	Source     Source
	Origin     string
	StatusCode int // только для remote, 0 если ответа не было
	Err        error
}

func (e *AcquisitionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("schema acquisition from %s failed: HTTP %d: %v", e.Origin, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("schema acquisition from %s failed: %v", e.Origin, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
