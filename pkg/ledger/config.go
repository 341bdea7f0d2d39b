package ledger

import (
	"fmt"
	"strings"
	"time"
)

// DurabilityMode decides what happens to an in-memory mutation when its
// durable write fails.
type DurabilityMode int

const (
	// Rollback persists before committing; a failed write leaves the
	// account untouched and the operation fails with ErrPersistence.
	Rollback DurabilityMode = iota
	// WarnAndContinue commits the mutation even if the write fails and
	// reports the gap on the Receipt.
	WarnAndContinue
)

// String returns the configuration name of the mode.
func (m DurabilityMode) String() string {
	switch m {
	case Rollback:
		return "rollback"
	case WarnAndContinue:
		return "warn"
	default:
		return "unknown"
	}
}

// ParseDurabilityMode accepts "rollback" or "warn".
func ParseDurabilityMode(s string) (DurabilityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rollback":
		return Rollback, nil
	case "warn", "warn-and-continue", "warn_and_continue":
		return WarnAndContinue, nil
	default:
		return Rollback, fmt.Errorf("unknown durability mode %q", s)
	}
}

// AmountPolicy decides which deposit and withdrawal amounts are accepted.
type AmountPolicy int

const (
	// RequirePositive rejects zero and negative amounts with ErrInvalidAmount.
	RequirePositive AmountPolicy = iota
	// AllowAny accepts any amount, including zero and negative values.
	AllowAny
)

// String returns the configuration name of the policy.
func (p AmountPolicy) String() string {
	switch p {
	case RequirePositive:
		return "positive"
	case AllowAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseAmountPolicy accepts "positive" or "any".
func ParseAmountPolicy(s string) (AmountPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "positive":
		return RequirePositive, nil
	case "any":
		return AllowAny, nil
	default:
		return RequirePositive, fmt.Errorf("unknown amount policy %q", s)
	}
}

// Policy holds the behaviour switches shared by every account.
type Policy struct {
	// Durability selects rollback or warn-and-continue on write failures
	Durability DurabilityMode

	// Amounts selects which amounts deposit and withdraw accept
	Amounts AmountPolicy

	// Location is used to render and parse record timestamps (default: time.Local)
	Location *time.Location

	// Clock returns the wall-clock time for new transactions (default: time.Now)
	Clock func() time.Time
}

// DefaultPolicy returns the safe defaults: rollback and positive amounts.
func DefaultPolicy() Policy {
	return Policy{
		Durability: Rollback,
		Amounts:    RequirePositive,
		Location:   time.Local,
		Clock:      time.Now,
	}
}

// Validate checks that the policy values are known.
func (p *Policy) Validate() error {
	if p.Durability != Rollback && p.Durability != WarnAndContinue {
		return fmt.Errorf("ledger: invalid durability mode %d", p.Durability)
	}
	if p.Amounts != RequirePositive && p.Amounts != AllowAny {
		return fmt.Errorf("ledger: invalid amount policy %d", p.Amounts)
	}
	return nil
}

// withDefaults fills unset optional fields.
func (p Policy) withDefaults() Policy {
	if p.Location == nil {
		p.Location = time.Local
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return p
}
