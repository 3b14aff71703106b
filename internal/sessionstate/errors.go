package sessionstate

import "github.com/pkg/errors"

var (
	// ErrKeyNotFound is returned for a key absent from every layer of state.
	ErrKeyNotFound = errors.New("key not found in session state")
	// ErrDuplicateWidgetID is returned when two widgets declared in the same
	// run resolve to the same id.
	ErrDuplicateWidgetID = errors.New("duplicate widget id")
	// ErrWidgetValueAfterCreation is returned when a script assigns a key
	// that a widget already registered earlier in the same run.
	ErrWidgetValueAfterCreation = errors.New("setting the value of a widget after its creation is disallowed")
)
