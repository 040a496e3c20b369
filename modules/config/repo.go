package config

import (
	"os"
	"path/filepath"
)

// FileName is the name of the config file inside a repository's control
// directory.
const FileName = "config"

// Load reads and decodes the config file under controlDir. A missing file
// is not an error: it decodes the same as an empty config, matching a
// freshly initialized repository that hasn't set anything yet.
func Load(controlDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(controlDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	return Decode(data)
}

// Save serializes cfg and writes it to the config file under controlDir,
// replacing it atomically (temp file in the same directory, then rename)
// so a crash mid-write can never leave a half-written config behind.
func Save(controlDir string, cfg *Config) error {
	text, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(controlDir, "temp-config-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(controlDir, FileName))
}
