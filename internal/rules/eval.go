package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshsymonds/mailsift/internal/store"
)

// Diagnostics for conditions that cannot be evaluated. They always accompany
// a false verdict; callers log them and keep going.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrBadDate      = errors.New("unparsable date value")
)

// dateLayouts are tried in order for received-time condition values. Naive
// forms are taken as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// Eval applies the condition to one message. The verdict is false whenever
// the condition cannot be evaluated (unknown field, unparsable date value);
// those cases also return a diagnostic error. Any field/predicate pairing
// outside the defined table is false without error.
func (c Condition) Eval(m store.Message) (bool, error) {
	if c.Field == FieldReceived {
		return c.evalTime(m.Received.UTC())
	}

	var text string
	switch c.Field {
	case FieldSender:
		text = m.Sender
	case FieldTo:
		text = m.To
	case FieldSubject:
		text = m.Subject
	case FieldBody:
		text = m.Body
	default:
		return false, ErrUnknownField
	}
	return c.evalText(text), nil
}

// evalText covers the four text fields. Comparisons are case-insensitive;
// ordering predicates are not defined on text.
func (c Condition) evalText(text string) bool {
	have := strings.ToLower(text)
	want := strings.ToLower(c.Value)
	switch c.Predicate {
	case PredicateContains:
		return strings.Contains(have, want)
	case PredicateNotContains:
		return !strings.Contains(have, want)
	case PredicateEquals:
		return have == want
	case PredicateNotEquals:
		return have != want
	default:
		return false
	}
}

// evalTime covers the received timestamp. The condition value parses into an
// instant first; Contains compares the RFC 3339 renderings of both sides.
func (c Condition) evalTime(ts time.Time) (bool, error) {
	want, err := parseWhen(c.Value)
	if err != nil {
		return false, err
	}
	switch c.Predicate {
	case PredicateContains:
		return strings.Contains(ts.Format(time.RFC3339), want.Format(time.RFC3339)), nil
	case PredicateNotContains:
		return !strings.Contains(ts.Format(time.RFC3339), want.Format(time.RFC3339)), nil
	case PredicateEquals:
		return ts.Equal(want), nil
	case PredicateNotEquals:
		return !ts.Equal(want), nil
	case PredicateLessThan:
		return ts.Before(want), nil
	case PredicateGreaterThan:
		return ts.After(want), nil
	default:
		return false, nil
	}
}

// Match reports whether the group's conditions hold for the message. Every
// condition is evaluated; an errored condition counts as not matching, and
// the errors are joined so the caller can log each one.
func (g ConditionGroup) Match(m store.Message) (bool, error) {
	var errs []error
	matched := 0
	for i, c := range g.Conditions {
		ok, err := c.Eval(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("condition %d: %w", i, err))
		}
		if ok {
			matched++
		}
	}

	verdict := false
	switch g.Combinator {
	case CombinatorAll:
		// vacuously true on an empty group
		verdict = matched == len(g.Conditions)
	case CombinatorAny:
		verdict = matched > 0
	}
	return verdict, errors.Join(errs...)
}
