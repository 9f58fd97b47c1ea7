package compose

import "fmt"

// DocumentLoadError aborts an export: a source document could not be read,
// parsed or copied from.
type DocumentLoadError struct {
	DocumentID string
	Name       string
	Err        error
}

func (e *DocumentLoadError) Error() string {
	name := e.Name
	if name == "" {
		name = e.DocumentID
	}
	return fmt.Sprintf("load %s: %v", name, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }
