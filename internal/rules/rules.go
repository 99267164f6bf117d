// Package rules holds the rule document model and the condition evaluation
// it drives.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Field selects which part of a stored message a condition inspects.
type Field int

const (
	FieldUnknown Field = iota
	FieldSender
	FieldTo
	FieldSubject
	FieldBody
	FieldReceived
)

// fieldsByWire maps the rule document's field names, lowercased. "From" and
// "Message" are historical names for sender and body.
var fieldsByWire = map[string]Field{
	"from":     FieldSender,
	"to":       FieldTo,
	"subject":  FieldSubject,
	"message":  FieldBody,
	"received": FieldReceived,
}

func (f *Field) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*f = FieldUnknown
		return nil
	}
	*f = fieldsByWire[strings.ToLower(s)]
	return nil
}

func (f Field) String() string {
	switch f {
	case FieldSender:
		return "From"
	case FieldTo:
		return "To"
	case FieldSubject:
		return "Subject"
	case FieldBody:
		return "Message"
	case FieldReceived:
		return "Received"
	default:
		return "unknown"
	}
}

// Predicate is the comparison a condition performs.
type Predicate int

const (
	PredicateUnknown Predicate = iota
	PredicateContains
	PredicateNotContains
	PredicateEquals
	PredicateNotEquals
	PredicateLessThan
	PredicateGreaterThan
)

var predicatesByWire = map[string]Predicate{
	"contains":         PredicateContains,
	"does not contain": PredicateNotContains,
	"equals":           PredicateEquals,
	"does not equal":   PredicateNotEquals,
	"less than":        PredicateLessThan,
	"greater than":     PredicateGreaterThan,
}

func (p *Predicate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*p = PredicateUnknown
		return nil
	}
	*p = predicatesByWire[strings.ToLower(s)]
	return nil
}

func (p Predicate) String() string {
	switch p {
	case PredicateContains:
		return "Contains"
	case PredicateNotContains:
		return "Does not Contain"
	case PredicateEquals:
		return "Equals"
	case PredicateNotEquals:
		return "Does not Equal"
	case PredicateLessThan:
		return "Less Than"
	case PredicateGreaterThan:
		return "Greater Than"
	default:
		return "unknown"
	}
}

// Combinator joins the conditions of one rule.
type Combinator int

const (
	CombinatorUnknown Combinator = iota
	CombinatorAll
	CombinatorAny
)

var combinatorsByWire = map[string]Combinator{
	"all": CombinatorAll,
	"any": CombinatorAny,
}

func (c *Combinator) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*c = CombinatorUnknown
		return nil
	}
	*c = combinatorsByWire[strings.ToLower(s)]
	return nil
}

func (c Combinator) String() string {
	switch c {
	case CombinatorAll:
		return "All"
	case CombinatorAny:
		return "Any"
	default:
		return "unknown"
	}
}

// ActionType is one of the closed set of supported mailbox actions.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionMarkRead
	ActionMarkUnread
	ActionStar
	ActionUnstar
	ActionMove
	ActionTrash
	ActionArchive
)

var actionsByWire = map[string]ActionType{
	"mark_as_read":    ActionMarkRead,
	"mark_as_unread":  ActionMarkUnread,
	"add_star":        ActionStar,
	"remove_star":     ActionUnstar,
	"move_message":    ActionMove,
	"move_to_trash":   ActionTrash,
	"archive_message": ActionArchive,
}

func (a *ActionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*a = ActionUnknown
		return nil
	}
	*a = actionsByWire[strings.ToLower(s)]
	return nil
}

func (a ActionType) String() string {
	switch a {
	case ActionMarkRead:
		return "mark_as_read"
	case ActionMarkUnread:
		return "mark_as_unread"
	case ActionStar:
		return "add_star"
	case ActionUnstar:
		return "remove_star"
	case ActionMove:
		return "move_message"
	case ActionTrash:
		return "move_to_trash"
	case ActionArchive:
		return "archive_message"
	default:
		return "unknown"
	}
}

// Condition is a single field comparison. An unrecognized wire name for the
// field or predicate decodes to the zero value and fails closed at
// evaluation time rather than failing the document load.
type Condition struct {
	Field     Field     `json:"field"`
	Predicate Predicate `json:"predicate"`
	Value     string    `json:"value"`
}

// ConditionGroup is the conditions of one rule plus how they combine. The
// wire keys follow the rule document format: the combinator is spelled
// "predicate" and the conditions "rules".
type ConditionGroup struct {
	Combinator Combinator  `json:"predicate"`
	Conditions []Condition `json:"rules"`
}

// ActionParams carries per-action parameters. Only move_message uses any.
type ActionParams struct {
	Label string `json:"label"`
}

// Action is one mailbox operation requested by a rule.
type Action struct {
	Type   ActionType   `json:"type"`
	Params ActionParams `json:"params"`
}

// Rule pairs a condition group with the actions to run when it matches.
type Rule struct {
	Name       string         `json:"name"`
	Conditions ConditionGroup `json:"conditions"`
	Actions    []Action       `json:"actions"`
}

type document struct {
	Rules []Rule `json:"rules"`
}

// Load reads a rule document from path. Callers treat an error as an empty
// rule set: a broken rules file downgrades the run to a no-op, it does not
// abort the program.
func Load(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}
	return doc.Rules, nil
}
