// Package workflow implements the state machine engine. Machines are data:
// each workflow type registers a Descriptor at startup declaring its states
// and transitions; transitions carry guards, side effects, required fields,
// required attachment slots and a payload schema.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/unicef/etools-core/internal/model"
)

// Object is the contract a workflow model fulfills. Field access is through
// a fixed per-model getter; the engine never reflects over structs.
type Object interface {
	ObjectKind() string
	ObjectID() uint
	CurrentStatus() string
	StatusChangedAt() time.Time
	SetStatus(status string, at time.Time)
	IsNew() bool
	FieldValue(name string) (interface{}, bool)
	TrackedFields() map[string]interface{}
	TableName() string
}

// Guard is a pure predicate over (object, actor, payload). The engine
// supplies its clock so time-dependent guards never read the wall clock
// themselves. It returns nil to pass or an error carrying the refusal
// reason.
type Guard func(ctx context.Context, obj Object, actor *model.User, payload map[string]interface{}, now time.Time) error

// Effect is a side effect run inside the transition's unit of work. Effects
// are idempotent by construction; a failing effect fails the whole
// transition.
type Effect func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error

// Transition is one declared edge.
type Transition struct {
	Action              string
	From                []string
	To                  string
	Guards              []Guard
	Effects             []Effect
	RequiredFields      []string
	RequiredAttachments []string
	// PayloadRules is a validator/v10 rule map evaluated with ValidateMap,
	// e.g. {"comment": "required"}.
	PayloadRules map[string]interface{}
}

func (t *Transition) fromContains(status string) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// Descriptor declares one machine.
type Descriptor struct {
	Name        string
	States      []string
	Initial     string
	Transitions []Transition
}

// Find returns the transition for an action whose source set contains the
// status, or the action's transition regardless of source when none matches
// (the engine reports InvalidSourceStatus in that case).
func (d *Descriptor) Find(action string) []*Transition {
	var out []*Transition
	for i := range d.Transitions {
		if d.Transitions[i].Action == action {
			out = append(out, &d.Transitions[i])
		}
	}
	return out
}

// Validate checks the descriptor's internal consistency: every edge endpoint
// is a declared state and the initial state is declared.
func (d *Descriptor) Validate() error {
	declared := map[string]bool{}
	for _, s := range d.States {
		declared[s] = true
	}
	if !declared[d.Initial] {
		return fmt.Errorf("machine %s: initial state %q not declared", d.Name, d.Initial)
	}
	for _, t := range d.Transitions {
		if !declared[t.To] {
			return fmt.Errorf("machine %s: transition %s targets undeclared state %q", d.Name, t.Action, t.To)
		}
		for _, s := range t.From {
			if !declared[s] {
				return fmt.Errorf("machine %s: transition %s sources undeclared state %q", d.Name, t.Action, s)
			}
		}
	}
	return nil
}

// Actions lists the declared action names in declaration order, without
// duplicates.
func (d *Descriptor) Actions() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range d.Transitions {
		if !seen[t.Action] {
			seen[t.Action] = true
			out = append(out, t.Action)
		}
	}
	return out
}

var registry = map[string]*Descriptor{}

// Register adds a machine to the process-wide registry. It panics on an
// inconsistent descriptor; registration happens at startup only.
func Register(d *Descriptor) {
	if err := d.Validate(); err != nil {
		panic(err)
	}
	if _, exists := registry[d.Name]; exists {
		panic(fmt.Sprintf("machine %q registered twice", d.Name))
	}
	registry[d.Name] = d
}

// Lookup returns a registered machine by workflow kind.
func Lookup(kind string) (*Descriptor, bool) {
	d, ok := registry[kind]
	return d, ok
}
