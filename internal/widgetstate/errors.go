package widgetstate

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned for a widget id with no entry.
	ErrNotFound = errors.New("widget state not found")
	// ErrNoMetadata is returned when a serialized entry is read before its
	// widget has been declared in this run.
	ErrNoMetadata = errors.New("widget has no metadata")
)
