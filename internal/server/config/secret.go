package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
)

// MinSecretLength is the minimum number of characters accepted for the JWT
// signing secret and the vault master key.
const MinSecretLength = 32

// ReadSecret reads a secret file and trims surrounding whitespace. A missing
// file or a value shorter than minLen is a configuration error.
func ReadSecret(path string, minLen int) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: secret path is empty", common.ErrConfiguration)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read secret %s: %v", common.ErrConfiguration, path, err)
	}

	s := strings.TrimSpace(string(b))
	common.WipeByteArray(b)

	if len(s) < minLen {
		return nil, fmt.Errorf("%w: secret %s must be at least %d characters", common.ErrConfiguration, path, minLen)
	}
	return []byte(s), nil
}
