package model

import "fmt"

// LoadError reports that a model artifact failed to load or parse. It is
// fatal to pipeline start: no stage is left partially initialized when one
// artifact fails.
type LoadError struct {
	// Artifact identifies the offending artifact (wake-word identifier or
	// stage name such as "spectral", "embedding", "vad").
	Artifact string

	// Err is the underlying load failure.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load model artifact %q: %v", e.Artifact, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *LoadError) Unwrap() error { return e.Err }
