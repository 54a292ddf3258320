package core

import "regexp"

// apiKeyPattern matches the key prefixes the router issues
var apiKeyPattern = regexp.MustCompile(`^(sk|lr)-[A-Za-z0-9_\-]+$`)

// ValidateAPIKey rejects empty keys and keys without a recognized prefix
func ValidateAPIKey(key string) error {
	if key == "" {
		return NewInvalidRequestError("apiKey", "API key is required")
	}
	if !apiKeyPattern.MatchString(key) {
		return NewInvalidRequestError("apiKey", "API key must start with \"sk-\" or \"lr-\"")
	}
	return nil
}
