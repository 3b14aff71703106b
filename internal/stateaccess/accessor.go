// Package stateaccess provides the script-facing view of session state. The
// active session is looked up on every access, so one Accessor serves every
// session in the process.
package stateaccess

import (
	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/sessionstate"
)

var (
	// ErrReservedKey is returned for any key in the generated widget id
	// namespace.
	ErrReservedKey = errors.New("reserved session state key")
	// ErrNoAttribute is the attribute-style form of a missing key.
	ErrNoAttribute = errors.New("session state has no attribute")
)

// Accessor is a key-validating view over the active session's state.
type Accessor struct {
	registry *runctx.Registry
}

// New returns an Accessor resolving sessions through registry, or through
// runctx.Default if registry is nil.
func New(registry *runctx.Registry) *Accessor {
	if registry == nil {
		registry = runctx.Default
	}
	return &Accessor{registry: registry}
}

// ValidateKey fails with ErrReservedKey for a key in the generated widget id
// namespace.
func ValidateKey(key string) error {
	if sessionstate.IsGeneratedKey(key) {
		return errors.Wrapf(ErrReservedKey,
			"keys beginning with %s are reserved for internal use: %q",
			sessionstate.GeneratedWidgetKeyPrefix, key)
	}
	return nil
}

func (a *Accessor) state() (*sessionstate.SessionState, error) {
	ctx, err := a.registry.Current()
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve the session state")
	}
	return ctx.SessionState, nil
}

// Get returns the value for key.
func (a *Accessor) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s, err := a.state()
	if err != nil {
		return nil, err
	}
	return s.Get(key)
}

// Has reports whether key has a value.
func (a *Accessor) Has(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	s, err := a.state()
	if err != nil {
		return false, err
	}
	return s.Has(key), nil
}

// Set assigns key for the current run.
func (a *Accessor) Set(key string, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s, err := a.state()
	if err != nil {
		return err
	}
	return s.Set(key, value)
}

// Delete removes key.
func (a *Accessor) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s, err := a.state()
	if err != nil {
		return err
	}
	return s.Delete(key)
}

// Attr is Get with a missing key reported as ErrNoAttribute.
func (a *Accessor) Attr(name string) (any, error) {
	v, err := a.Get(name)
	return v, asAttrError(name, err)
}

// SetAttr is Set in attribute form.
func (a *Accessor) SetAttr(name string, value any) error {
	return a.Set(name, value)
}

// DelAttr is Delete with a missing key reported as ErrNoAttribute.
func (a *Accessor) DelAttr(name string) error {
	return asAttrError(name, a.Delete(name))
}

func asAttrError(name string, err error) error {
	if errors.Is(err, sessionstate.ErrKeyNotFound) {
		return errors.Wrapf(ErrNoAttribute, "%q", name)
	}
	return err
}

// Keys returns the visible keys: script keys and keyed widget values.
func (a *Accessor) Keys() ([]string, error) {
	s, err := a.state()
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range s.Keys() {
		if !sessionstate.IsGeneratedKey(k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of visible keys.
func (a *Accessor) Len() (int, error) {
	keys, err := a.Keys()
	return len(keys), err
}

// ToMap returns the visible state as a map.
func (a *Accessor) ToMap() (map[string]any, error) {
	s, err := a.state()
	if err != nil {
		return nil, err
	}
	return s.FilteredState(), nil
}
