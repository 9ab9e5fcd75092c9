package config

import (
	"fmt"
)

// MustNonEmpty reports a missing required variable. Callers decide whether
// that is fatal; cmd mains log.Fatal on it.
func MustNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func MustNonEmptyBytes(value []byte, envName string) error {
	if len(value) == 0 {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}
