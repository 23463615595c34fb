// Package event maps a host business event onto default diagnostic fields.
package event

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
)

// Kind is the closed set of host message kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreate
	KindUpdate
	KindDelete
	KindCustomInvocation
)

// StagePreOperation is the host's numeric pre-operation stage.
const StagePreOperation = 20

// Input parameter keys read by ComputeDefaults.
const (
	ParamSource      = "Source"
	ParamStage       = "Stage"
	ParamLevel       = "Level"
	ParamMessage     = "Message"
	ParamTraceParent = "TraceParent"
)

// RequiredParams are the keys checked by ValidateRequired.
var RequiredParams = []string{ParamSource, ParamStage, ParamLevel, ParamMessage}

var kindNames = map[Kind]string{
	KindUnknown:          "Unknown",
	KindCreate:           "Create",
	KindUpdate:           "Update",
	KindDelete:           "Delete",
	KindCustomInvocation: "CustomInvocation",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a host message name to a Kind. Unrecognised names map to
// KindUnknown.
func ParseKind(message string) Kind {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "create":
		return KindCreate
	case "update":
		return KindUpdate
	case "delete":
		return KindDelete
	case "customapi", "custominvocation":
		return KindCustomInvocation
	default:
		return KindUnknown
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseKind.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// Context is the host-supplied event. The engine never modifies it.
type Context struct {
	Kind          Kind              `json:"kind"`
	Stage         int               `json:"stage"`
	PrimaryEntity string            `json:"primaryEntity"`
	UserID        uuid.UUID         `json:"userId"`
	Input         map[string]string `json:"input,omitempty"`
	// InheritedTag is the correlation tag of the enclosing operation.
	InheritedTag string `json:"inheritedTag,omitempty"`
}

// Param returns the input parameter for key and whether it was supplied.
func (c *Context) Param(key string) (string, bool) {
	if c == nil || c.Input == nil {
		return "", false
	}
	v, ok := c.Input[key]
	return v, ok
}

// ValidationError lists required input parameters that were not supplied.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required input parameters: %s", strings.Join(e.Missing, ", "))
}

// ValidateRequired reports a *ValidationError when any of RequiredParams is
// absent from the input. Presence is what counts; empty values pass.
func (c *Context) ValidateRequired() error {
	var missing []string
	for _, key := range RequiredParams {
		if _, ok := c.Param(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Defaults are the diagnostic fields derived for one invocation.
type Defaults struct {
	Source  string
	Stage   string
	Message string
	Level   severity.Level
}

type baseline struct {
	source string
	verb   string
}

var baselines = map[Kind]baseline{
	KindCreate: {"EntityCreation", "created"},
	KindUpdate: {"EntityUpdate", "updated"},
	KindDelete: {"EntityDeletion", "deleted"},
}

// StageLabel returns PreOperation for the host pre-operation stage and
// PostOperation for anything else.
func StageLabel(stage int) string {
	if stage == StagePreOperation {
		return "PreOperation"
	}
	return "PostOperation"
}

// ComputeDefaults derives the diagnostic fields for c and applies the
// Source, Stage, Level and Message overrides from its input in that order.
// An unparseable Level falls back to Information. The inherited tag is
// returned as is; precedence is decided by tracectx.Resolve.
func ComputeDefaults(c *Context) (Defaults, string) {
	if c == nil {
		c = &Context{}
	}

	d := Defaults{Level: severity.Information}
	switch c.Kind {
	case KindCreate, KindUpdate, KindDelete:
		b := baselines[c.Kind]
		d.Source = b.source
		d.Stage = StageLabel(c.Stage)
		d.Message = fmt.Sprintf("%s Entity has been %s.", c.PrimaryEntity, b.verb)
	case KindCustomInvocation:
		d.Source = "CustomApiExecution"
		d.Stage = StageLabel(c.Stage)
		d.Message = "Custom API has been executed."
	default:
		d.Source = "UnknownOperation"
		d.Stage = "UnknownStage"
		d.Message = "Unknown operation."
	}

	if c.UserID != uuid.Nil {
		d.Message += " by User " + c.UserID.String()
	}

	if v, ok := c.Param(ParamSource); ok {
		d.Source = v
	}
	if v, ok := c.Param(ParamStage); ok {
		d.Stage = v
	}
	if v, ok := c.Param(ParamLevel); ok {
		d.Level = severity.ParseOrDefault(v)
	}
	if v, ok := c.Param(ParamMessage); ok {
		d.Message = v
	}

	return d, c.InheritedTag
}
