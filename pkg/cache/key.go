package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies one cached description: an image payload described
// under a specific role, model, language, and optional custom prompt.
type Key struct {
	// PayloadDigest is the hex SHA-256 of the image payload.
	PayloadDigest string

	// Role is the service role string for the requested field.
	Role string

	// Model is the backend model identifier.
	Model string

	// Language is the output language code.
	Language string

	// PromptDigest is the hex SHA-256 of the custom prompt, empty when
	// the role's default prompt was used.
	PromptDigest string
}

// NewKey builds a cache key from a payload and request parameters.
func NewKey(payload []byte, role, model, language, prompt string) Key {
	key := Key{
		PayloadDigest: digest(payload),
		Role:          role,
		Model:         model,
		Language:      language,
	}
	if prompt != "" {
		key.PromptDigest = digest([]byte(prompt))
	}
	return key
}

// String generates a deterministic cache key string.
// Format: vision:desc:<payload_digest>:role=<role>:model=<model>:lang=<lang>[:prompt=<digest>]
func (k Key) String() string {
	parts := []string{"vision", "desc", k.PayloadDigest,
		"role=" + k.Role,
		"model=" + k.Model,
		"lang=" + k.Language,
	}

	if k.PromptDigest != "" {
		parts = append(parts, "prompt="+k.PromptDigest)
	}

	return strings.Join(parts, ":")
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
