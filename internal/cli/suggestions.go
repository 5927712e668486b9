package cli

import (
	"fmt"
	"strings"

	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/config"
)

// suggestKeys returns a hint for a mistyped configuration key.
func suggestKeys(query string) string {
	q := strings.ToLower(query)
	keys := config.Keys()

	var matches []string
	for _, k := range keys {
		if strings.HasPrefix(k, q) || strings.HasSuffix(k, "."+q) {
			matches = append(matches, color.Success(k))
		}
	}

	// If no prefix matches, try substring
	if len(matches) == 0 && q != "" {
		for _, k := range keys {
			if strings.Contains(k, q) {
				matches = append(matches, color.Success(k))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}
	return fmt.Sprintf("Run %s to see available keys.", color.Code("dotlock config --help"))
}

// formatUnknownKeyError formats an unknown config key error with suggestions.
func formatUnknownKeyError(key string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("unknown configuration key '%s'", key))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestKeys(key)))
	return sb.String()
}
