package plumbing

import (
	"errors"
	"fmt"
)

var (
	//ErrStop is used to stop a ForEach function in an Iter
	ErrStop = errors.New("stop iter")
)

// noSuchObject is an error type that occurs when no object with a given object
// ID is available.
type noSuchObject struct {
	oid Hash
}

// Error implements the error.Error() function.
func (e *noSuchObject) Error() string {
	return fmt.Sprintf("gitcore: no such object: %s", e.oid)
}

// NoSuchObject creates a new error representing a missing object with a given
// object ID.
func NoSuchObject(oid Hash) error {
	return &noSuchObject{oid: oid}
}

// IsNoSuchObject indicates whether an error is a noSuchObject and is non-nil.
func IsNoSuchObject(e error) bool {
	if e == nil {
		return false
	}
	err, ok := e.(*noSuchObject)
	return ok && err != nil
}

func ExtractNoSuchObject(e error) (Hash, bool) {
	if e == nil {
		return ZeroHash, false
	}
	err, ok := e.(*noSuchObject)
	if !ok {
		return ZeroHash, false
	}
	return err.oid, true
}

type ErrResourceLocked struct {
	name ReferenceName
	t    string
}

func (err *ErrResourceLocked) Error() string {
	return fmt.Sprintf("%s '%s' locked", err.t, err.name)
}

func IsErrResourceLocked(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrResourceLocked)
	return ok
}

func NewErrResourceLocked(t string, name ReferenceName) error {
	return &ErrResourceLocked{t: t, name: name}
}

type ErrRevNotFound struct {
	Reason string
}

func (e *ErrRevNotFound) Error() string { return e.Reason }

func NewErrRevNotFound(format string, a ...any) error {
	return &ErrRevNotFound{Reason: fmt.Sprintf(format, a...)}
}

func IsErrRevNotFound(e error) bool {
	if e == nil {
		return false
	}
	err, ok := e.(*ErrRevNotFound)
	return ok && err != nil
}

// NotARepository is raised when an operation is attempted outside of (or
// against) a path that does not contain a recognizable repository.
type NotARepository struct {
	Path string
}

func (e *NotARepository) Error() string {
	return fmt.Sprintf("not a gitcore repository (or any parent up to %s)", e.Path)
}

func NewNotARepository(path string) error {
	return &NotARepository{Path: path}
}

func IsNotARepository(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*NotARepository)
	return ok
}

// AmbiguousRef is raised when an abbreviated object name or ref matches
// more than one candidate.
type AmbiguousRef struct {
	Name string
}

func (e *AmbiguousRef) Error() string {
	return fmt.Sprintf("ambiguous argument %q: unknown revision or more than one object matches", e.Name)
}

func NewAmbiguousRef(name string) error {
	return &AmbiguousRef{Name: name}
}

func IsAmbiguousRef(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*AmbiguousRef)
	return ok
}

// InvalidRef is raised by the reference-name validator.
type InvalidRef struct {
	Name   string
	Reason string
}

func (e *InvalidRef) Error() string {
	return fmt.Sprintf("invalid reference name %q: %s", e.Name, e.Reason)
}

func NewInvalidRef(name, reason string) error {
	return &InvalidRef{Name: name, Reason: reason}
}

func IsInvalidRef(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*InvalidRef)
	return ok
}

// PathOutsideRepo is raised when a normalized working-tree path escapes the
// repository root (e.g. via "..").
type PathOutsideRepo struct {
	Path string
}

func (e *PathOutsideRepo) Error() string {
	return fmt.Sprintf("path %q is outside the repository", e.Path)
}

func NewPathOutsideRepo(path string) error {
	return &PathOutsideRepo{Path: path}
}

func IsPathOutsideRepo(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*PathOutsideRepo)
	return ok
}

// InvalidConfigKey is raised by the configuration reader/writer when a
// section/subsection/key triple cannot be resolved.
type InvalidConfigKey struct {
	Key string
}

func (e *InvalidConfigKey) Error() string {
	return fmt.Sprintf("invalid config key %q", e.Key)
}

func NewInvalidConfigKey(key string) error {
	return &InvalidConfigKey{Key: key}
}

func IsInvalidConfigKey(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*InvalidConfigKey)
	return ok
}

// PackError is raised by the pack reader on structurally invalid pack
// data: bad magic, unsupported version, unknown entry type, an
// out-of-range or cyclic delta base, or an entry that inflates to a size
// other than its header's. Malformed delta instruction streams and zlib
// failures are returned as ordinary wrapped errors, not as PackError, and
// the pack trailer checksum is not verified.
type PackError struct {
	Reason string
}

func (e *PackError) Error() string { return fmt.Sprintf("pack error: %s", e.Reason) }

func NewPackError(format string, a ...any) error {
	return &PackError{Reason: fmt.Sprintf(format, a...)}
}

func IsPackError(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*PackError)
	return ok
}

// IdxError is raised by the pack-index reader/writer on structurally
// invalid idx data (bad magic, unsupported version, too short to hold the
// trailer). The fanout table is not checked for consistency.
type IdxError struct {
	Reason string
}

func (e *IdxError) Error() string { return fmt.Sprintf("idx error: %s", e.Reason) }

func NewIdxError(format string, a ...any) error {
	return &IdxError{Reason: fmt.Sprintf(format, a...)}
}

func IsIdxError(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*IdxError)
	return ok
}

// IndexCorrupt is raised by the staging-area (DIRC) reader when the file's
// structure (signature, version, entry count, sort order) is invalid.
type IndexCorrupt struct {
	Reason string
}

func (e *IndexCorrupt) Error() string { return fmt.Sprintf("index corrupt: %s", e.Reason) }

func NewIndexCorrupt(format string, a ...any) error {
	return &IndexCorrupt{Reason: fmt.Sprintf(format, a...)}
}

func IsIndexCorrupt(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*IndexCorrupt)
	return ok
}

// IndexChecksumError is raised by the staging-area reader when the
// trailing SHA-1 checksum does not match the file's content.
type IndexChecksumError struct {
	Got, Want Hash
}

func (e *IndexChecksumError) Error() string {
	return fmt.Sprintf("index checksum mismatch: got %s want %s", e.Got, e.Want)
}

func NewIndexChecksumError(got, want Hash) error {
	return &IndexChecksumError{Got: got, Want: want}
}

func IsIndexChecksumError(e error) bool {
	if e == nil {
		return false
	}
	_, ok := e.(*IndexChecksumError)
	return ok
}
