package ledger

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxAccountNumberLength bounds account numbers; they end up in file names and keys.
const MaxAccountNumberLength = 64

// ValidateAccountNumber checks that an account number is safe to use as a
// map key, file name component and backend key.
//
// Rules:
// - Non-empty string
// - At most MaxAccountNumberLength bytes
// - No control characters or whitespace
// - No path separators and not "." or ".."
func ValidateAccountNumber(number string) error {
	if number == "" {
		return ErrInvalidAccountNumber
	}

	if len(number) > MaxAccountNumberLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidAccountNumber, MaxAccountNumberLength)
	}

	for _, r := range number {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control character", ErrInvalidAccountNumber)
		}
	}

	if strings.ContainsAny(number, `/\`) || number == "." || number == ".." {
		return fmt.Errorf("%w: contains path separator", ErrInvalidAccountNumber)
	}

	return nil
}

// KeyPattern builds backend keys with a fixed prefix.
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a key pattern with the given prefix and separator.
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts.
// Example: NewKeyPattern("ledger", ":").Build("tx", "12345") -> "ledger:tx:12345"
func (kp *KeyPattern) Build(parts ...string) string {
	var b strings.Builder
	b.WriteString(kp.prefix)
	for _, part := range parts {
		if b.Len() > 0 {
			b.WriteString(kp.separator)
		}
		b.WriteString(part)
	}
	return b.String()
}
