// Package transport defines the capability fetch, push, and clone code
// needs from a remote: list its refs, ask whether it already has an
// object, and pull an object's raw bytes. It names the interface only;
// the concrete local/dumb-HTTP/smart-upload-pack implementations that
// satisfy it live outside this engine's core.
package transport

import (
	"context"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// RemoteReference is one advertised (name, hash) pair from ListRefs.
type RemoteReference struct {
	Name plumbing.ReferenceName
	Hash plumbing.Hash
}

// Remote is the capability a remote endpoint exposes to the core. Every
// method may block on network IO; callers are expected to pass a context
// that bounds that wait, since the core itself has no notion of a
// timeout.
type Remote interface {
	// ListRefs returns every ref the remote currently advertises.
	ListRefs(ctx context.Context) ([]RemoteReference, error)

	// HasObject reports whether the remote already stores oid, used to
	// prune a push's object set down to what the remote is missing.
	HasObject(ctx context.Context, oid plumbing.Hash) (bool, error)

	// GetObjectRaw returns oid's uncompressed type and content.
	GetObjectRaw(ctx context.Context, oid plumbing.Hash) (typ object.Type, content []byte, err error)
}
