// utils/validator.go - Input validation
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOrderID accepts a positive decimal order id.
func ParseOrderID(raw string) (uint64, error) {
	raw = SanitizeInput(raw)
	if raw == "" {
		return 0, fmt.Errorf("order id is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}

// ParseBool reads form-style booleans ("1", "true", "yes", "on").
func ParseBool(raw string) bool {
	switch strings.ToLower(SanitizeInput(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
