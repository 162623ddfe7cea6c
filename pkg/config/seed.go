package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} references with
// environment values.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// LoadState reads a YAML seed file and returns its top-level mapping as
// initial state.
func LoadState(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseState(data)
}

// ParseState parses a YAML seed document, applying environment variable
// substitution first.
func ParseState(data []byte) (map[string]any, error) {
	expanded := ExpandEnvVars(string(data))

	var state map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &state); err != nil {
		return nil, fmt.Errorf("parsing seed state: %w", err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}
