package checkpoint

import (
	"github.com/kbukum/datapipe/encryption"
	"github.com/kbukum/datapipe/validation"
)

// Config configures a Store.
type Config struct {
	// Prefix is the key prefix checkpoints are written under.
	Prefix string `yaml:"prefix" mapstructure:"prefix" validate:"required"`
	// Keep is the number of checkpoints retained; 0 keeps all.
	Keep int `yaml:"keep" mapstructure:"keep" validate:"gte=0"`
	// EncryptionKey enables sealing of stored checkpoints when set.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key" json:"-"`
	// Cipher is aes-256-gcm (default) or chacha20-poly1305.
	Cipher string `yaml:"cipher" mapstructure:"cipher" validate:"omitempty,oneof=aes-256-gcm chacha20-poly1305"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "checkpoints"
	}
	if c.Cipher == "" {
		c.Cipher = string(encryption.AlgorithmAESGCM)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// Sealer returns the sealer selected by the configuration, or nil when no
// encryption key is set.
func (c *Config) Sealer() (encryption.Sealer, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	return encryption.New(c.EncryptionKey, encryption.WithAlgorithm(encryption.Algorithm(c.Cipher)))
}
