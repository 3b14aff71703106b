package scripting

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/joeycumines/rerun/internal/widgets"
	"github.com/joeycumines/rerun/internal/widgetstate"
)

// jsOptions reads the optional trailing options object of an API call.
type jsOptions struct {
	vm  *goja.Runtime
	obj *goja.Object
}

func isMissing(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func optionsArg(vm *goja.Runtime, v goja.Value) jsOptions {
	if isMissing(v) {
		return jsOptions{vm: vm}
	}
	return jsOptions{vm: vm, obj: v.ToObject(vm)}
}

func (o jsOptions) get(name string) goja.Value {
	if o.obj == nil {
		return nil
	}
	v := o.obj.Get(name)
	if isMissing(v) {
		return nil
	}
	return v
}

func (o jsOptions) string(name, def string) string {
	if v := o.get(name); v != nil {
		return v.String()
	}
	return def
}

func (o jsOptions) bool(name string, def bool) bool {
	if v := o.get(name); v != nil {
		return v.ToBoolean()
	}
	return def
}

func (o jsOptions) int(name string, def int64) int64 {
	if v := o.get(name); v != nil {
		return v.ToInteger()
	}
	return def
}

func (o jsOptions) float(name string) *float64 {
	if v := o.get(name); v != nil {
		f := v.ToFloat()
		return &f
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

// widgetOptions reads key, help, args and kwargs, and the callback stored
// under callbackName.
func (o jsOptions) widgetOptions(callbackName string) widgets.Options {
	opts := widgets.Options{
		Key:      o.string("key", ""),
		Help:     o.string("help", ""),
		OnChange: o.callback(callbackName),
	}
	if v := o.get("args"); v != nil {
		if args, ok := v.Export().([]any); ok {
			opts.Args = args
		}
	}
	if v := o.get("kwargs"); v != nil {
		if kwargs, ok := v.Export().(map[string]any); ok {
			opts.Kwargs = kwargs
		}
	}
	return opts
}

// callback wraps a script function as a widget callback. The callback runs
// later, on the loop, at the start of a rerun. Args are passed positionally,
// followed by kwargs as a single object if present.
func (o jsOptions) callback(name string) widgetstate.Callback {
	v := o.get(name)
	if v == nil {
		return nil
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(o.vm.NewTypeError(name + " must be a function"))
	}
	vm := o.vm
	return func(args []any, kwargs map[string]any) error {
		jsArgs := make([]goja.Value, 0, len(args)+1)
		for _, a := range args {
			jsArgs = append(jsArgs, vm.ToValue(a))
		}
		if kwargs != nil {
			jsArgs = append(jsArgs, vm.ToValue(kwargs))
		}
		_, err := fn(goja.Undefined(), jsArgs...)
		return err
	}
}

// stringsArg reads an array argument as strings.
func stringsArg(vm *goja.Runtime, v goja.Value) []string {
	if isMissing(v) {
		return nil
	}
	arr := v.ToObject(vm)
	n := int(arr.Get("length").ToInteger())
	out := make([]string, n)
	for i := range n {
		out[i] = arr.Get(strconv.Itoa(i)).String()
	}
	return out
}
