package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig bounds what a cache key may contain.
type KeyValidationConfig struct {
	ReservedPatterns  []string
	MaxKeyLength      int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultKeyValidationConfig accepts any non-empty UTF-8 key up to 1 KiB without control characters.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:    1024,
		AllowWhitespace: true,
	}
}

type keyRule func(key string) error

// KeyValidator checks keys before they reach a cache layer. Rules run in
// order and the first failure wins.
type KeyValidator struct {
	allowEmpty bool
	rules      []keyRule
}

// NewKeyValidator compiles cfg into a validator.
func NewKeyValidator(cfg KeyValidationConfig) *KeyValidator {
	v := &KeyValidator{allowEmpty: cfg.AllowEmpty}
	if cfg.MaxKeyLength > 0 {
		v.rules = append(v.rules, maxLength(cfg.MaxKeyLength))
	}
	v.rules = append(v.rules, runes(cfg.AllowControlChars, cfg.AllowWhitespace))
	if len(cfg.ReservedPatterns) > 0 {
		v.rules = append(v.rules, reserved(cfg.ReservedPatterns))
	}
	return v
}

// Validate returns an error wrapping ErrInvalidKey when key breaks a rule.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if v.allowEmpty {
			return nil
		}
		return invalidKey("key cannot be empty")
	}
	for _, rule := range v.rules {
		if err := rule(key); err != nil {
			return err
		}
	}
	return nil
}

func invalidKey(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidKey}, args...)...)
}

func maxLength(limit int) keyRule {
	return func(key string) error {
		if len(key) > limit {
			return invalidKey("key length %d exceeds maximum %d bytes", len(key), limit)
		}
		return nil
	}
}

func runes(allowControl, allowSpace bool) keyRule {
	return func(key string) error {
		for i, r := range key {
			switch {
			case r == utf8.RuneError:
				return invalidKey("key contains invalid UTF-8 at position %d", i)
			case !allowControl && (r < 0x20 || r == 0x7f):
				return invalidKey("key contains control character at position %d", i)
			case !allowSpace && unicode.IsSpace(r):
				return invalidKey("key contains whitespace at position %d", i)
			}
		}
		return nil
	}
}

func reserved(patterns []string) keyRule {
	patterns = append([]string(nil), patterns...)
	return func(key string) error {
		for _, p := range patterns {
			if strings.Contains(key, p) {
				return invalidKey("key contains reserved pattern %q", p)
			}
		}
		return nil
	}
}

// DefaultKeyValidator uses DefaultKeyValidationConfig.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey checks key with DefaultKeyValidator.
func ValidateKey(key string) error {
	return DefaultKeyValidator.Validate(key)
}

// IsInvalidKey reports whether err wraps ErrInvalidKey.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
