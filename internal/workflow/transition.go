// Package workflow holds the approval state machines as data together with the
// pure validation rules shared by handlers, services and tests.
package workflow

import "fmt"

// Action names a transition handler.
type Action string

// Rule lists the statuses an action may start from and the statuses it may produce.
type Rule[S ~string] struct {
	From []S
	To   []S
}

// Table maps actions to their rules for one entity.
type Table[S ~string] struct {
	Entity string
	Rules  map[Action]Rule[S]
}

// Allowed reports whether action may run while the entity is in status from.
func (t Table[S]) Allowed(action Action, from S) bool {
	rule, ok := t.Rules[action]
	if !ok {
		return false
	}
	return contains(rule.From, from)
}

// Check validates a concrete from -> to move for action.
func (t Table[S]) Check(action Action, from, to S) error {
	rule, ok := t.Rules[action]
	if !ok || !contains(rule.From, from) || !contains(rule.To, to) {
		return &TransitionError{Entity: t.Entity, Action: action, From: string(from), To: string(to)}
	}
	return nil
}

// Require is Allowed returning a *TransitionError.
func (t Table[S]) Require(action Action, from S) error {
	if !t.Allowed(action, from) {
		return &TransitionError{Entity: t.Entity, Action: action, From: string(from)}
	}
	return nil
}

// TransitionError reports an action attempted from the wrong status.
type TransitionError struct {
	Entity string
	Action Action
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s: cannot %s from %s to %s", e.Entity, e.Action, e.From, e.To)
	}
	return fmt.Sprintf("%s: cannot %s while %s", e.Entity, e.Action, e.From)
}

func contains[S ~string](list []S, v S) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
