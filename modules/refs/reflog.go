package refs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

const reflogDir = "logs"

// ReflogEntry is one line of a per-ref reflog: the transition from Old to
// New, who made it, and the single-line message describing it.
type ReflogEntry struct {
	Old, New plumbing.Hash
	Who      object.Signature
	Message  string
}

// Reflog holds the full, most-recent-first history of one ref.
type Reflog struct {
	name    plumbing.ReferenceName
	Entries []*ReflogEntry
}

func (l *Reflog) Empty() bool { return l == nil || len(l.Entries) == 0 }

// Push prepends a new entry, whose Old is the previous entry's New (or the
// zero hash for a ref's first record).
func (l *Reflog) Push(newHash plumbing.Hash, who object.Signature, message string) {
	e := &ReflogEntry{New: newHash, Who: who, Message: message}
	if len(l.Entries) > 0 {
		e.Old = l.Entries[0].New
	}
	l.Entries = append([]*ReflogEntry{e}, l.Entries...)
}

// Drop removes the entry at index (0 = most recent) — used by `stash pop`,
// which both applies and removes the top stash entry. The neighboring
// entries are left as they are; no Old value is relinked.
func (l *Reflog) Drop(index int) error {
	if index < 0 || index >= len(l.Entries) {
		return fmt.Errorf("refs: no reflog entry at index %d", index)
	}
	rest := make([]*ReflogEntry, 0, len(l.Entries)-1)
	rest = append(rest, l.Entries[:index]...)
	rest = append(rest, l.Entries[index+1:]...)
	l.Entries = rest
	return nil
}

// ReflogStore reads and writes per-ref reflogs under logs/.
type ReflogStore struct {
	root string
}

func NewReflogStore(root string) *ReflogStore {
	return &ReflogStore{root: root}
}

func (d *ReflogStore) path(name plumbing.ReferenceName) string {
	return filepath.Join(d.root, reflogDir, filepath.FromSlash(name.String()))
}

func (d *ReflogStore) Exists(name plumbing.ReferenceName) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

// Read loads name's reflog, returning an empty Reflog (not an error) if
// none exists yet.
func (d *ReflogStore) Read(name plumbing.ReferenceName) (*Reflog, error) {
	p := d.path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &Reflog{name: name}, nil
		}
		return nil, err
	}
	entries, err := parseReflog(data)
	if err != nil {
		return nil, err
	}
	return &Reflog{name: name, Entries: entries}, nil
}

// parseReflog reads records in on-disk (oldest-first) order and returns
// them most-recent-first, matching Reflog's in-memory convention.
func parseReflog(data []byte) ([]*ReflogEntry, error) {
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	var entries []*ReflogEntry
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		e, err := parseReflogLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// parseReflogLine parses "old SP new SP who SP ts SP tz TAB message", the
// format the spec fixes: a single space between the two oid columns and
// the trailing "who ts tz" identity (which is itself the same
// "Name <email> ts tz" grammar commit/tag headers use, so the name may
// contain embedded spaces), and a single TAB before the free-form
// message.
func parseReflogLine(line string) (*ReflogEntry, error) {
	header := line
	message := ""
	if tab := strings.IndexByte(line, '\t'); tab != -1 {
		header = line[:tab]
		message = line[tab+1:]
	}

	oldField, rest, ok := strings.Cut(header, " ")
	if !ok {
		return nil, fmt.Errorf("refs: malformed reflog line %q", line)
	}
	newField, identity, ok := strings.Cut(rest, " ")
	if !ok {
		return nil, fmt.Errorf("refs: malformed reflog line %q", line)
	}

	oldOid, err := plumbing.NewHashEx(oldField)
	if err != nil {
		return nil, fmt.Errorf("refs: malformed reflog old oid: %w", err)
	}
	newOid, err := plumbing.NewHashEx(newField)
	if err != nil {
		return nil, fmt.Errorf("refs: malformed reflog new oid: %w", err)
	}
	who, err := object.ParseSignature(identity)
	if err != nil {
		return nil, fmt.Errorf("refs: malformed reflog identity: %w", err)
	}
	return &ReflogEntry{Old: oldOid, New: newOid, Who: who, Message: message}, nil
}

// Write serializes l atomically, oldest-first on disk.
func (d *ReflogStore) Write(l *Reflog) error {
	p := d.path(l.name)
	return d.lockPath(l.name, p, func() error {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(filepath.Dir(p), "temp-reflog-")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName)

		w := bufio.NewWriter(tmp)
		for i := len(l.Entries) - 1; i >= 0; i-- {
			e := l.Entries[i]
			if e.Message == "" {
				fmt.Fprintf(w, "%s %s %s\n", e.Old, e.New, e.Who)
				continue
			}
			fmt.Fprintf(w, "%s %s %s\t%s\n", e.Old, e.New, e.Who, strings.ReplaceAll(e.Message, "\n", " "))
		}
		if err := w.Flush(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, p)
	})
}

// Delete removes name's reflog file entirely.
func (d *ReflogStore) Delete(name plumbing.ReferenceName) error {
	p := d.path(name)
	return d.lockPath(name, p, func() error {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

func (d *ReflogStore) lockPath(name plumbing.ReferenceName, p string, fn func() error) error {
	lockName := p + ".lock"
	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reflog", name)
		}
		return err
	}
	err = fn()
	fd.Close()
	os.Remove(lockName)
	return err
}
