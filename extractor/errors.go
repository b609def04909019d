package extractor

import "fmt"

// ShapeMismatchError reports that a response payload did not contain the
// expected accessor path for its schema. It is recovered by the caller: the
// interception is treated as yielding zero records and the surrounding
// request proceeds unmodified.
type ShapeMismatchError struct {
	Schema  string
	Missing string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("response shape mismatch for %s: missing %q", e.Schema, e.Missing)
}
