package cache

import "fmt"

const keyPhaseSweepLock = "lock:phase_sweep"

// KeyBuilder prefixes keys with the deployment environment so that staging and
// production can share a Redis instance.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder maps environment to a key prefix.
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging":
		prefix = "staging"
	case "test":
		prefix = "test"
	}
	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a key with the environment prefix.
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("civicbudget:%s:%s", kb.prefix, key)
}

// Prefix returns the environment prefix.
func (kb *KeyBuilder) Prefix() string {
	return kb.prefix
}

// KeyPhaseSweepLock is the lock held while a phase transition sweep runs.
func (kb *KeyBuilder) KeyPhaseSweepLock() string {
	return kb.BuildKey(keyPhaseSweepLock)
}
