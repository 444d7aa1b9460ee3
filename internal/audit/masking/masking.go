// Package masking redacts personal data before it lands in audit metadata.
package masking

import "strings"

const maskToken = "****"

// MaskSecret keeps the last four characters of value.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskFields returns a copy of input where the listed keys hold masked
// strings. Nested maps are walked; other values pass through.
func MaskFields(input map[string]any, sensitive ...string) map[string]any {
	if len(input) == 0 {
		return nil
	}

	keys := make(map[string]struct{}, len(sensitive))
	for _, key := range sensitive {
		keys[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
	}
	return maskMap(input, keys)
}

func maskMap(input map[string]any, keys map[string]struct{}) map[string]any {
	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := keys[strings.ToLower(trimmedKey)]; ok {
			masked[trimmedKey] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			masked[trimmedKey] = maskMap(nested, keys)
			continue
		}
		masked[trimmedKey] = value
	}
	return masked
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case *string:
		if cast == nil {
			return nil
		}
		return MaskSecret(*cast)
	case nil:
		return nil
	default:
		return maskToken
	}
}
