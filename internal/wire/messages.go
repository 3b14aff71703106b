package wire

// MsgKind identifies which payload of a ForwardMsg is populated.
type MsgKind string

const (
	MsgNone              MsgKind = ""
	MsgPageConfigChanged MsgKind = "page_config_changed"
	MsgDelta             MsgKind = "delta"
	MsgScriptFinished    MsgKind = "script_finished"
)

// ForwardMsg is one outbound message from a script run to the browser.
type ForwardMsg struct {
	PageConfigChanged *PageConfig     `msgpack:"page_config_changed,omitempty" json:"page_config_changed,omitempty"`
	Delta             *Delta          `msgpack:"delta,omitempty" json:"delta,omitempty"`
	ScriptFinished    *ScriptFinished `msgpack:"script_finished,omitempty" json:"script_finished,omitempty"`
}

// Kind reports the populated payload.
func (m *ForwardMsg) Kind() MsgKind {
	switch {
	case m == nil:
		return MsgNone
	case m.PageConfigChanged != nil:
		return MsgPageConfigChanged
	case m.Delta != nil:
		return MsgDelta
	case m.ScriptFinished != nil:
		return MsgScriptFinished
	}
	return MsgNone
}

// PageConfig is the page-level configuration a script may set once per run.
type PageConfig struct {
	Title               string `msgpack:"title,omitempty" json:"title,omitempty"`
	Favicon             string `msgpack:"favicon,omitempty" json:"favicon,omitempty"`
	Layout              string `msgpack:"layout,omitempty" json:"layout,omitempty"`
	InitialSidebarState string `msgpack:"initial_sidebar_state,omitempty" json:"initial_sidebar_state,omitempty"`
}

// ScriptFinished closes a run.
type ScriptFinished struct {
	RunID  uint64 `msgpack:"run_id" json:"run_id"`
	Status string `msgpack:"status" json:"status"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Delta carries one new element.
type Delta struct {
	Element *Element `msgpack:"element" json:"element"`
}

// Element holds exactly one element payload.
type Element struct {
	Markdown    *Markdown    `msgpack:"markdown,omitempty" json:"markdown,omitempty"`
	Alert       *Alert       `msgpack:"alert,omitempty" json:"alert,omitempty"`
	Exception   *Exception   `msgpack:"exception,omitempty" json:"exception,omitempty"`
	Checkbox    *Checkbox    `msgpack:"checkbox,omitempty" json:"checkbox,omitempty"`
	Radio       *Radio       `msgpack:"radio,omitempty" json:"radio,omitempty"`
	Button      *Button      `msgpack:"button,omitempty" json:"button,omitempty"`
	TextInput   *TextInput   `msgpack:"text_input,omitempty" json:"text_input,omitempty"`
	NumberInput *NumberInput `msgpack:"number_input,omitempty" json:"number_input,omitempty"`
}

type Markdown struct {
	Body string `msgpack:"body" json:"body"`
}

type Alert struct {
	Level string `msgpack:"level" json:"level"`
	Body  string `msgpack:"body" json:"body"`
}

type Exception struct {
	Type    string `msgpack:"type" json:"type"`
	Message string `msgpack:"message" json:"message"`
}

// The widget elements below double as the declaration that identifies a
// widget: everything except ID, Value and SetValue feeds the widget id hash.

type Checkbox struct {
	ID       string `msgpack:"id" json:"id"`
	Label    string `msgpack:"label" json:"label"`
	Default  bool   `msgpack:"default" json:"default"`
	Help     string `msgpack:"help,omitempty" json:"help,omitempty"`
	FormID   string `msgpack:"form_id,omitempty" json:"form_id,omitempty"`
	Value    bool   `msgpack:"value" json:"value"`
	SetValue bool   `msgpack:"set_value" json:"set_value"`
}

type Radio struct {
	ID       string   `msgpack:"id" json:"id"`
	Label    string   `msgpack:"label" json:"label"`
	Default  int64    `msgpack:"default" json:"default"`
	Options  []string `msgpack:"options" json:"options"`
	Help     string   `msgpack:"help,omitempty" json:"help,omitempty"`
	FormID   string   `msgpack:"form_id,omitempty" json:"form_id,omitempty"`
	Value    int64    `msgpack:"value" json:"value"`
	SetValue bool     `msgpack:"set_value" json:"set_value"`
}

type Button struct {
	ID              string `msgpack:"id" json:"id"`
	Label           string `msgpack:"label" json:"label"`
	Help            string `msgpack:"help,omitempty" json:"help,omitempty"`
	FormID          string `msgpack:"form_id,omitempty" json:"form_id,omitempty"`
	IsFormSubmitter bool   `msgpack:"is_form_submitter" json:"is_form_submitter"`
}

type TextInput struct {
	ID       string `msgpack:"id" json:"id"`
	Label    string `msgpack:"label" json:"label"`
	Default  string `msgpack:"default" json:"default"`
	MaxChars int64  `msgpack:"max_chars,omitempty" json:"max_chars,omitempty"`
	Help     string `msgpack:"help,omitempty" json:"help,omitempty"`
	FormID   string `msgpack:"form_id,omitempty" json:"form_id,omitempty"`
	Value    string `msgpack:"value" json:"value"`
	SetValue bool   `msgpack:"set_value" json:"set_value"`
}

type NumberInput struct {
	ID       string   `msgpack:"id" json:"id"`
	Label    string   `msgpack:"label" json:"label"`
	DataType string   `msgpack:"data_type" json:"data_type"`
	Default  float64  `msgpack:"default" json:"default"`
	Min      *float64 `msgpack:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `msgpack:"max,omitempty" json:"max,omitempty"`
	Step     float64  `msgpack:"step" json:"step"`
	Help     string   `msgpack:"help,omitempty" json:"help,omitempty"`
	FormID   string   `msgpack:"form_id,omitempty" json:"form_id,omitempty"`
	Value    float64  `msgpack:"value" json:"value"`
	SetValue bool     `msgpack:"set_value" json:"set_value"`
}

const (
	NumberInt   = "int"
	NumberFloat = "float"
)

// NewDelta wraps an element in a ForwardMsg.
func NewDelta(el *Element) *ForwardMsg {
	return &ForwardMsg{Delta: &Delta{Element: el}}
}
