package avr

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// errUnmatched marks a line no rule recognised.
var errUnmatched = errors.New("avr: unrecognised response")

// rule is one decoder step: a pure predicate over the line and the handler
// that applies it. Rules are tried in order and the first match wins.
type rule struct {
	name   string
	match  func(line string) bool
	handle func(ctx context.Context, s *session, line string, zone int) error
}

func prefix(p string) func(string) bool {
	return func(line string) bool { return strings.HasPrefix(line, p) }
}

func exact(values ...string) func(string) bool {
	return func(line string) bool {
		for _, v := range values {
			if line == v {
				return true
			}
		}
		return false
	}
}

// runRules applies the first matching rule.
func runRules(ctx context.Context, s *session, rules []rule, line string, zone int) error {
	for _, r := range rules {
		if r.match(line) {
			return r.handle(ctx, s, line, zone)
		}
	}
	return errUnmatched
}

// decode applies one inbound line to the store.
func (s *session) decode(ctx context.Context, line string) error {
	switch s.dialect {
	case DialectReceiver:
		return s.decodeReceiver(ctx, line)
	case DialectAmplifier:
		return runRules(ctx, s, amplifierRules, line, 0)
	default:
		return errUnmatched
	}
}

// canonicalKey strips whitespace and digits: "PSBAS 50" becomes "PSBAS".
func canonicalKey(line string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsDigit(r) {
			return -1
		}
		return r
	}, line)
}

// trailingDigits returns the digit run at the end of line.
func trailingDigits(line string) string {
	i := len(line)
	for i > 0 && line[i-1] >= '0' && line[i-1] <= '9' {
		i--
	}
	return line[i:]
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// printable drops control characters from display text.
func printable(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s))
}
