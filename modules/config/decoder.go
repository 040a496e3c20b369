package config

import (
	"bytes"
	"io"

	"github.com/go-git/gcfg"
)

// Decoder reads and decodes a gitcore config file from an input stream.
type Decoder struct {
	io.Reader
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// Decode reads the whole config from its input and stores it into cfg.
// Unlike a struct-tagged gcfg target, every section/subsection/key gcfg
// hands the callback is recorded verbatim, so the resulting Config is a
// generic key/value map rather than a fixed schema -- "user", "core" and
// "remote \"<name>\"" are recognized by convention, not by decoder shape.
func (d *Decoder) Decode(cfg *Config) error {
	cb := func(s string, ss string, k string, v string, bv bool) error {
		if ss == "" && k == "" {
			cfg.Section(s)
			return nil
		}
		if ss != "" && k == "" {
			cfg.Section(s).Subsection(ss)
			return nil
		}
		if ss != "" {
			cfg.AddOption(s, ss, k, v)
		} else {
			cfg.AddOption(s, "", k, v)
		}
		return nil
	}
	return gcfg.FatalOnly(gcfg.ReadWithCallback(d, cb))
}

// Decode parses data as a config file into a fresh Config.
func Decode(data []byte) (*Config, error) {
	cfg := New()
	if err := NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
