package translate

import (
	"fmt"
	"os"
	"strings"
)

// Credential lookup order:
//  1. --api-key flag (highest priority)
//  2. SUBTRANS_API_KEY environment variable
//  3. Key file in the working directory
const (
	// KeyFile is the well-known credential file name.
	KeyFile = "api_key.txt"
	// KeyEnvVar is the environment variable consulted before the file.
	KeyEnvVar = "SUBTRANS_API_KEY"
)

// LoadKey resolves the API key. flagValue wins when non-empty; an empty
// result means no credential is configured, which the client reports as
// an auth error on first use.
func LoadKey(flagValue string) string {
	if flagValue != "" {
		return strings.TrimSpace(flagValue)
	}
	if v := os.Getenv(KeyEnvVar); v != "" {
		return strings.TrimSpace(v)
	}
	data, err := os.ReadFile(KeyFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveKey writes the credential to the key file, owner read/write only.
func SaveKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to save empty API key")
	}
	if err := os.WriteFile(KeyFile, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", KeyFile, err)
	}
	return nil
}
