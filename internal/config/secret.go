package config

import "log/slog"

const redacted = "[REDACTED]"

// SecretString holds a credential loaded from a file or the environment.
// It formats, logs and marshals as [REDACTED]; only Value exposes it.
type SecretString struct {
	value string
}

// NewSecretString wraps value.
func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

// Value returns the credential.
func (s SecretString) Value() string {
	return s.value
}

// IsEmpty reports whether no credential is set.
func (s SecretString) IsEmpty() bool {
	return s.value == ""
}

func (s SecretString) mask() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

func (s SecretString) String() string {
	return s.mask()
}

func (s SecretString) GoString() string {
	return `config.SecretString("` + s.mask() + `")`
}

// LogValue keeps the credential out of slog output.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(s.mask())
}

// MarshalText is used by encoding/json, so dumped configs never carry the credential.
func (s SecretString) MarshalText() ([]byte, error) {
	return []byte(s.mask()), nil
}

func (s *SecretString) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}
