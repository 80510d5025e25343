package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir is where Docker mounts secrets.
var SecretsDir = "/run/secrets"

// ReadSecret reads a Docker secret file.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// secretOrEnv prefers the environment value and falls back to the secret file.
func secretOrEnv(envValue, secretName string) (string, error) {
	if envValue != "" {
		return envValue, nil
	}
	secret, err := ReadSecret(secretName)
	if err != nil {
		return "", fmt.Errorf("%s is not set and no secret is mounted: %w", strings.ToUpper(secretName), err)
	}
	return secret, nil
}
