package widgets

import "github.com/pkg/errors"

var (
	// ErrCallbackInForm is returned for a change callback on a widget inside
	// a form; only the form's submit button may carry one.
	ErrCallbackInForm = errors.New("callbacks are not allowed on widgets in forms; put them on the form submit button instead")
	// ErrWritesNotAllowed is returned when the script assigned a value to a
	// widget that only the frontend may set.
	ErrWritesNotAllowed = errors.New("values for this widget cannot be set using session state")
	// ErrInvalidWidget is returned for a declaration that cannot be built.
	ErrInvalidWidget = errors.New("invalid widget")
)
