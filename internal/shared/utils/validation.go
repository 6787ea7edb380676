package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Size limits (in bytes)
const (
	MaxCodeSize     = 256 * 1024 // 256KB - source of one evaluation
	MaxBindingsSize = 1024 * 1024
	MaxMessageSize  = MaxCodeSize + 4*1024 // one REPL frame
)

// Structural limits
const (
	MaxBindings       = 64
	MaxBindingDepth   = 32
	MaxIdentifierSize = 128
)

// IdentifierPattern matches names a binding can be installed under.
var IdentifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidateCode validates source submitted for evaluation.
func ValidateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("code is required")
	}
	if len(code) > MaxCodeSize {
		return fmt.Errorf("code size %d bytes exceeds maximum %d bytes", len(code), MaxCodeSize)
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("code is not valid UTF-8")
	}
	// Check for null bytes (security issue)
	if strings.Contains(code, "\x00") {
		return fmt.Errorf("code contains invalid characters")
	}
	return nil
}

// ValidateBindings validates JSON bindings before they are bridged into a realm.
func ValidateBindings(bindings map[string]interface{}) error {
	if len(bindings) > MaxBindings {
		return fmt.Errorf("too many bindings (maximum %d)", MaxBindings)
	}
	for name := range bindings {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}

	data, err := sonic.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("failed to marshal bindings: %w", err)
	}
	if len(data) > MaxBindingsSize {
		return fmt.Errorf("bindings size %d bytes exceeds maximum %d bytes", len(data), MaxBindingsSize)
	}

	// Deeply nested values are bridged lazily but still cost a wrapper per level
	for name, value := range bindings {
		if err := ValidateJSONDepth(value, MaxBindingDepth); err != nil {
			return fmt.Errorf("binding %q: %w", name, err)
		}
	}
	return nil
}

// ValidateIdentifier validates a binding name.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("binding name is required")
	}
	if len(name) > MaxIdentifierSize {
		return fmt.Errorf("binding name must not exceed %d characters", MaxIdentifierSize)
	}
	if !IdentifierPattern.MatchString(name) {
		return fmt.Errorf("binding name %q is not an identifier", name)
	}
	return nil
}

// ValidateJSONDepth checks if JSON nesting depth is within limits
func ValidateJSONDepth(data interface{}, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data interface{}, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("JSON nesting depth %d exceeds maximum %d", currentDepth, maxDepth)
	}

	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}
