package config

import "os"

// ExpandEnv expands environment variables in YAML content.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Examples:
//   - ${GEMINI_API_KEY} → value of GEMINI_API_KEY environment variable
//   - ${OUTPUT_ROOT}/json → path with the variable expanded
//
// Missing variables expand to empty string. Validation should catch required fields that are empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
