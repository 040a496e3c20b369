package opstate

import (
	"os"
	"path/filepath"
	"strings"
)

func (r *Repo) stateDir() string {
	return filepath.Join(r.Root, stateDirName)
}

func (r *Repo) statePath(name string) string {
	return filepath.Join(r.stateDir(), name)
}

// writeStateFile writes content to name atomically (temp file in the same
// directory, then rename), matching the rest of this engine's full-file
// replace convention for anything that isn't append-only.
func (r *Repo) writeStateFile(name, content string) error {
	dir := r.stateDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "temp-"+name+"-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.statePath(name))
}

// readStateFile returns name's trimmed content and whether it exists.
func (r *Repo) readStateFile(name string) (string, bool, error) {
	data, err := os.ReadFile(r.statePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (r *Repo) removeStateFile(name string) error {
	err := os.Remove(r.statePath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *Repo) stateFileExists(name string) bool {
	_, err := os.Stat(r.statePath(name))
	return err == nil
}
