package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTarget is returned when a target is empty or contains characters
// outside the accepted set.
var ErrInvalidTarget = errors.New("invalid target")

// Target is a normalized host, IP, CIDR or URL string. The zero value is not
// a valid target; use ParseTarget.
type Target string

// String returns the normalized target.
func (t Target) String() string {
	return string(t)
}

// ParseTarget trims, validates and lower-cases a raw target string.
// Whitespace, quotes and shell metacharacters are rejected, as is a leading
// '-' that a tool would read as an option.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: target cannot be empty", ErrInvalidTarget)
	}
	if strings.HasPrefix(raw, "-") {
		return "", fmt.Errorf("%w: %q must not start with '-'", ErrInvalidTarget, raw)
	}

	for _, r := range raw {
		if !allowedTargetRune(r) {
			return "", fmt.Errorf("%w: %q contains disallowed character %q", ErrInvalidTarget, raw, r)
		}
	}

	return Target(strings.ToLower(raw)), nil
}

// ParseTargets parses every raw target. Blank lines are ignored and
// duplicates (after normalization) are dropped, keeping first-seen order.
func ParseTargets(raw []string) ([]Target, error) {
	seen := make(map[Target]bool, len(raw))
	targets := make([]Target, 0, len(raw))

	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		t, err := ParseTarget(r)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}

	return targets, nil
}

func allowedTargetRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(".:/_-@?=&%~+[]", r)
}
