package config

import (
	"fmt"
	"io"
	"strings"
)

// Encoder writes a Config back out in the INI format the decoder reads,
// one leaf-only responsibility gcfg itself doesn't provide.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes every section of cfg, sections and options in the order
// they were first added (matching Python's configparser, which preserves
// insertion order on write).
func (e *Encoder) Encode(cfg *Config) error {
	for _, s := range cfg.sections {
		if err := e.writeSection(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeSection(s *Section) error {
	header := "[" + s.Name + "]"
	if s.Subsection != "" {
		header = fmt.Sprintf("[%s %q]", s.Name, s.Subsection)
	}
	if _, err := fmt.Fprintln(e.w, header); err != nil {
		return err
	}
	for _, k := range s.Order {
		if _, err := fmt.Fprintf(e.w, "\t%s = %s\n", k, escapeValue(s.Options[k])); err != nil {
			return err
		}
	}
	return nil
}

// escapeValue backslash-escapes the characters gcfg's scanner treats
// specially in a double-quote-free value context (newline and any
// backslash), keeping what this package writes parseable by what it
// reads.
func escapeValue(v string) string {
	if !strings.ContainsAny(v, "\n\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}

// Encode renders cfg as config-file text.
func Encode(cfg *Config) (string, error) {
	var buf strings.Builder
	if err := NewEncoder(&buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
