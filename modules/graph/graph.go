// Package graph implements commit-DAG traversal: first-parent and full
// history walks, ancestry tests, and merge-base.
package graph

import (
	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// CommitLoader resolves a commit hash to its decoded Commit. It is
// satisfied by modules/odb.Database composed with object.DecodeCommit,
// kept as a narrow interface here so graph algorithms can be exercised
// against an in-memory fixture without a real object database.
type CommitLoader interface {
	Commit(h plumbing.Hash) (*object.Commit, error)
}

// Parents returns c's parent list in header order, the only thing every
// walk and test below needs from a loaded commit.
func Parents(loader CommitLoader, h plumbing.Hash) ([]plumbing.Hash, error) {
	c, err := loader.Commit(h)
	if err != nil {
		return nil, err
	}
	return c.Parents, nil
}
