package am

import (
	"io"

	"github.com/BurntSushi/toml"

	"github.com/teranos/aisguard/errors"
)

// Encode writes the effective configuration to w as TOML
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return nil
}
