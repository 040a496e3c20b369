// Package object implements the canonical blob/tree/commit/tag object model:
// in-memory representations plus the exact byte encoding that determines an
// object's content-address. Storage (compression, the on-disk header,
// hashing) lives in modules/odb; this package only deals with the content
// bytes that get hashed and stored.
package object

import "fmt"

// Type identifies the kind of a git object.
type Type int8

const (
	InvalidType Type = iota
	BlobType
	TreeType
	CommitType
	TagType
)

func (t Type) String() string {
	switch t {
	case BlobType:
		return "blob"
	case TreeType:
		return "tree"
	case CommitType:
		return "commit"
	case TagType:
		return "tag"
	default:
		return "invalid"
	}
}

// TypeFromString maps a header type token to a Type, returning InvalidType
// for anything unrecognized.
func TypeFromString(s string) Type {
	switch s {
	case "blob":
		return BlobType
	case "tree":
		return TreeType
	case "commit":
		return CommitType
	case "tag":
		return TagType
	default:
		return InvalidType
	}
}

// UnexpectedObjectType is returned when an object loaded from the database
// does not have the type the caller asked for.
type UnexpectedObjectType struct {
	Got, Wanted Type
}

func (e *UnexpectedObjectType) Error() string {
	return fmt.Sprintf("object: expected %s, got %s", e.Wanted, e.Got)
}

// Header returns the canonical object header: "<type> <size>\x00".
func Header(t Type, size int64) string {
	return fmt.Sprintf("%s %d\x00", t, size)
}
