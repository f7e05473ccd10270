package core

import (
	"fmt"
	"strings"
)

// RejectPolicy decides what happens to an output row whose primary key is
// invalid or duplicated.
type RejectPolicy string

const (
	// RejectDrop discards the row and logs a warning.
	RejectDrop RejectPolicy = "drop"
	// RejectKeep writes the row anyway and logs a warning.
	RejectKeep RejectPolicy = "keep"
	// RejectError aborts the conversion with a PrimaryKeyViolation.
	RejectError RejectPolicy = "error"
)

// ParseRejectPolicy parses a policy name case-insensitively. The empty
// string means RejectKeep.
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	p := RejectPolicy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return RejectKeep, nil
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate reports whether p is one of the known policies.
func (p RejectPolicy) Validate() error {
	switch p {
	case RejectDrop, RejectKeep, RejectError:
		return nil
	}
	return fmt.Errorf("%w %q: expected drop, keep or error", ErrInvalidPolicy, string(p))
}

func (p RejectPolicy) orDefault() RejectPolicy {
	if p == "" {
		return RejectKeep
	}
	return p
}
