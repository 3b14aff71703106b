package widgets

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/widgetstate"
	"github.com/joeycumines/rerun/internal/wire"
)

// Options are the arguments shared by every widget constructor.
type Options struct {
	Key      string
	Help     string
	OnChange widgetstate.Callback
	Args     []any
	Kwargs   map[string]any
}

func (o Options) widget(kind, formID string, decl any) *Widget {
	return &Widget{
		Kind:        kind,
		Declaration: decl,
		FormID:      formID,
		UserKey:     o.Key,
		OnChange:    o.OnChange,
		Args:        o.Args,
		Kwargs:      o.Kwargs,
	}
}

// valueAs asserts the effective value of a widget, which may have been
// assigned by the script with any type.
func valueAs[T any](kind string, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrInvalidWidget, "%s value has type %T, want %T", kind, v, zero)
	}
	return t, nil
}

// Checkbox displays a checkbox and returns whether it is checked.
func (b *Builder) Checkbox(label string, value bool, opts Options) (bool, error) {
	if err := b.checkCallbackRules(opts); err != nil {
		return false, err
	}
	if err := b.checkSessionStateRules(opts.Key, value, true); err != nil {
		return false, err
	}

	el := &wire.Checkbox{Label: label, Default: value, Help: opts.Help, FormID: b.formID}
	w := opts.widget("checkbox", b.formID, el)
	w.ValueType = wire.KindBool
	w.Serializer = widgetstate.Identity
	w.Deserializer = func(raw any) (any, error) {
		if raw == nil {
			return value, nil
		}
		return valueAs[bool]("checkbox", raw)
	}

	reg, err := Register(b.ctx, w)
	if err != nil {
		return false, err
	}
	current, err := valueAs[bool]("checkbox", reg.Value)
	if err != nil {
		return false, err
	}

	el.ID = reg.ID
	if reg.SetFrontendValue {
		el.Value, el.SetValue = current, true
	}
	return current, b.element(&wire.Element{Checkbox: el})
}

// Radio displays a radio group and returns the selected option, or "" if
// there are no options.
func (b *Builder) Radio(label string, options []string, index int, opts Options) (string, error) {
	if err := b.checkCallbackRules(opts); err != nil {
		return "", err
	}
	if len(options) > 0 && (index < 0 || index >= len(options)) {
		return "", errors.Wrapf(ErrInvalidWidget, "radio index %d out of range for %d options", index, len(options))
	}
	if len(options) == 0 && index != 0 {
		return "", errors.Wrap(ErrInvalidWidget, "radio index must be 0 when options are empty")
	}
	if err := b.checkSessionStateRules(opts.Key, index != 0, true); err != nil {
		return "", err
	}

	serialize := func(v any) (any, error) {
		s, err := valueAs[string]("radio", v)
		if err != nil {
			return nil, err
		}
		i := slices.Index(options, s)
		if i < 0 {
			return nil, errors.Wrapf(ErrInvalidWidget, "%q is not one of the radio options", s)
		}
		return int64(i), nil
	}

	el := &wire.Radio{Label: label, Default: int64(index), Options: options, Help: opts.Help, FormID: b.formID}
	w := opts.widget("radio", b.formID, el)
	w.ValueType = wire.KindInt
	w.Serializer = serialize
	w.Deserializer = func(raw any) (any, error) {
		idx := int64(index)
		if raw != nil {
			var err error
			if idx, err = valueAs[int64]("radio", raw); err != nil {
				return nil, err
			}
		}
		if len(options) == 0 {
			return "", nil
		}
		if idx < 0 || idx >= int64(len(options)) {
			return nil, errors.Wrapf(ErrInvalidWidget, "radio index %d out of range for %d options", idx, len(options))
		}
		return options[idx], nil
	}

	reg, err := Register(b.ctx, w)
	if err != nil {
		return "", err
	}
	current, err := valueAs[string]("radio", reg.Value)
	if err != nil {
		return "", err
	}

	el.ID = reg.ID
	if reg.SetFrontendValue {
		raw, err := serialize(current)
		if err != nil {
			return "", err
		}
		el.Value, el.SetValue = raw.(int64), true
	}
	return current, b.element(&wire.Element{Radio: el})
}

// Button displays a button and returns whether it was pressed since the last
// run. Buttons cannot be used inside a form; use FormSubmitButton.
func (b *Builder) Button(label string, opts Options) (bool, error) {
	if b.formID != "" {
		return false, errors.Wrap(ErrInvalidWidget, "st.button can't be used in a form; use st.form_submit_button")
	}
	return b.button("button", label, false, opts)
}

// FormSubmitButton displays the submit button of the enclosing form. It is
// the only widget in a form that may carry a change callback.
func (b *Builder) FormSubmitButton(label string, opts Options) (bool, error) {
	if b.formID == "" {
		return false, errors.Wrap(ErrInvalidWidget, "st.form_submit_button must be used inside a form")
	}
	return b.button("form_submit_button", label, true, opts)
}

func (b *Builder) button(funcName, label string, submitter bool, opts Options) (bool, error) {
	if err := b.checkSessionStateRules(opts.Key, false, false); err != nil {
		return false, err
	}

	el := &wire.Button{Label: label, Help: opts.Help, FormID: b.formID, IsFormSubmitter: submitter}
	w := opts.widget("button", b.formID, el)
	w.FuncName = funcName
	w.ValueType = wire.KindTrigger
	w.Serializer = widgetstate.Identity
	w.Deserializer = func(raw any) (any, error) {
		if raw == nil {
			return false, nil
		}
		return valueAs[bool]("button", raw)
	}

	reg, err := Register(b.ctx, w)
	if err != nil {
		return false, err
	}
	pressed, err := valueAs[bool]("button", reg.Value)
	if err != nil {
		return false, err
	}

	el.ID = reg.ID
	return pressed, b.element(&wire.Element{Button: el})
}

// TextInput displays a single-line text input. A maxChars of 0 means no
// limit.
func (b *Builder) TextInput(label, value string, maxChars int64, opts Options) (string, error) {
	if err := b.checkCallbackRules(opts); err != nil {
		return "", err
	}
	if maxChars < 0 {
		return "", errors.Wrapf(ErrInvalidWidget, "text_input max_chars %d is negative", maxChars)
	}
	if maxChars > 0 && int64(len([]rune(value))) > maxChars {
		return "", errors.Wrapf(ErrInvalidWidget, "text_input value %q has more than %d characters", value, maxChars)
	}
	if err := b.checkSessionStateRules(opts.Key, value != "", true); err != nil {
		return "", err
	}

	el := &wire.TextInput{Label: label, Default: value, MaxChars: maxChars, Help: opts.Help, FormID: b.formID}
	w := opts.widget("text_input", b.formID, el)
	w.ValueType = wire.KindString
	w.Serializer = widgetstate.Identity
	w.Deserializer = func(raw any) (any, error) {
		if raw == nil {
			return value, nil
		}
		return valueAs[string]("text_input", raw)
	}

	reg, err := Register(b.ctx, w)
	if err != nil {
		return "", err
	}
	current, err := valueAs[string]("text_input", reg.Value)
	if err != nil {
		return "", err
	}

	el.ID = reg.ID
	if reg.SetFrontendValue {
		el.Value, el.SetValue = current, true
	}
	return current, b.element(&wire.Element{TextInput: el})
}

// NumberOptions configures NumberInput.
type NumberOptions struct {
	Options
	// Value is the initial value; nil starts at Min, or 0.
	Value    *float64
	Min, Max *float64
	Step     float64
	// Int restricts the input to integers.
	Int bool
}

// NumberInput displays a numeric input. Integer inputs still return a
// float64 holding an integral value.
func (b *Builder) NumberInput(label string, opts NumberOptions) (float64, error) {
	if err := b.checkCallbackRules(opts.Options); err != nil {
		return 0, err
	}

	value := 0.0
	switch {
	case opts.Value != nil:
		value = *opts.Value
	case opts.Min != nil:
		value = *opts.Min
	}
	if err := opts.validate(value); err != nil {
		return 0, err
	}
	if err := b.checkSessionStateRules(opts.Key, opts.Value != nil, true); err != nil {
		return 0, err
	}

	el := &wire.NumberInput{
		Label:    label,
		DataType: wire.NumberFloat,
		Default:  value,
		Min:      opts.Min,
		Max:      opts.Max,
		Step:     opts.Step,
		Help:     opts.Help,
		FormID:   b.formID,
	}
	w := opts.widget("number_input", b.formID, el)
	w.ValueType = wire.KindDouble
	if opts.Int {
		el.DataType = wire.NumberInt
		w.ValueType = wire.KindInt
	}
	w.Serializer = widgetstate.Identity
	w.Deserializer = func(raw any) (any, error) {
		switch v := raw.(type) {
		case nil:
			return value, nil
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
		return nil, errors.Wrapf(ErrInvalidWidget, "number_input value has type %T", raw)
	}

	reg, err := Register(b.ctx, w)
	if err != nil {
		return 0, err
	}
	current, err := toNumber(reg.Value)
	if err != nil {
		return 0, err
	}

	el.ID = reg.ID
	if reg.SetFrontendValue {
		el.Value, el.SetValue = current, true
	}
	return current, b.element(&wire.Element{NumberInput: el})
}

func (o NumberOptions) validate(value float64) error {
	if o.Min != nil && o.Max != nil && *o.Min > *o.Max {
		return errors.Wrapf(ErrInvalidWidget, "number_input min %v is greater than max %v", *o.Min, *o.Max)
	}
	if o.Min != nil && value < *o.Min {
		return errors.Wrapf(ErrInvalidWidget, "number_input value %v is less than min %v", value, *o.Min)
	}
	if o.Max != nil && value > *o.Max {
		return errors.Wrapf(ErrInvalidWidget, "number_input value %v is greater than max %v", value, *o.Max)
	}
	if o.Step < 0 {
		return errors.Wrapf(ErrInvalidWidget, "number_input step %v is negative", o.Step)
	}
	if o.Int && value != float64(int64(value)) {
		return errors.Wrapf(ErrInvalidWidget, "number_input value %v is not an integer", value)
	}
	return nil
}

// toNumber accepts the numeric types a script may assign.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, errors.Wrapf(ErrInvalidWidget, "number_input value has type %T", v)
}
