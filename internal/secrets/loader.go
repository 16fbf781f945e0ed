package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// Env names an environment variable holding the secret value.
	Env string
	// File points to a file containing the secret value. When set it takes
	// precedence over Env and Value.
	File string
}

// Load returns the resolved secret value from the provided source. File
// takes precedence over Env, which takes precedence over Value. The
// returned secret is always trimmed. An error is returned when no part
// of the source yields a usable secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
		return "", fmt.Errorf("%s file %q is empty", name, file)
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is not configured", name)
}
