// Package revparse resolves the short names a user types on a command line
// ("HEAD", "main", "v1.2.0~2^2") into the object hash they name.
package revparse

import (
	"errors"
	"strings"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// RefResolver is the subset of modules/refs.Store that name resolution
// needs. Kept as an interface so tests can supply an in-memory fixture
// instead of a real on-disk ref store.
type RefResolver interface {
	HEAD() (*plumbing.Reference, error)
	Reference(name plumbing.ReferenceName) (*plumbing.Reference, error)
}

// ObjectLoader is the subset of modules/odb.Database that peeling and
// hash-prefix resolution need.
type ObjectLoader interface {
	Exists(oid plumbing.Hash) bool
	ResolvePrefix(prefixHex string) (plumbing.Hash, error)
	GetRaw(oid plumbing.Hash) (object.Type, []byte, error)
}

// Revparse resolves rev against store and db, applying any trailing
// `~n`, `^n` or `^{}` suffixes. Accepted base forms, tried in order:
// literal HEAD, an unqualified name (first as refs/heads/<name>, then
// refs/tags/<name>), a full refs/... path, a full 40-hex hash, or an
// unambiguous hex prefix of at least 4 characters.
func Revparse(store RefResolver, db ObjectLoader, rev string) (plumbing.Hash, error) {
	base, suffix := splitSuffixes(rev)

	h, err := resolveBase(store, db, base)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	ops, err := parseSuffixes(suffix)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return applyOps(db, h, ops)
}

// splitSuffixes finds the first `~` or `^` in rev and splits the string
// there; reference and tag names can never themselves contain either
// character, so the first occurrence unambiguously starts the suffix
// chain.
func splitSuffixes(rev string) (base, suffix string) {
	i := strings.IndexAny(rev, "~^")
	if i < 0 {
		return rev, ""
	}
	return rev[:i], rev[i:]
}

func resolveBase(store RefResolver, db ObjectLoader, base string) (plumbing.Hash, error) {
	if base == "" || base == "HEAD" {
		return resolveRefChain(store, plumbing.HEAD)
	}

	if strings.HasPrefix(base, plumbing.ReferencePrefix) {
		if r, err := store.Reference(plumbing.ReferenceName(base)); err == nil {
			return resolveRefValue(store, r)
		}
	} else {
		if r, err := store.Reference(plumbing.NewBranchReferenceName(base)); err == nil {
			return resolveRefValue(store, r)
		}
		if r, err := store.Reference(plumbing.NewTagReferenceName(base)); err == nil {
			return resolveRefValue(store, r)
		}
	}

	if plumbing.ValidateHashHex(base) {
		hh := plumbing.NewHash(base)
		if db.Exists(hh) {
			return hh, nil
		}
		return plumbing.ZeroHash, plumbing.NewErrRevNotFound("object %s not found", base)
	}

	if plumbing.ValidateHashPrefixHex(base) {
		return db.ResolvePrefix(base)
	}

	return plumbing.ZeroHash, plumbing.NewErrRevNotFound("unknown revision or path not in the working tree: %q", base)
}

func resolveRefChain(store RefResolver, name plumbing.ReferenceName) (plumbing.Hash, error) {
	var r *plumbing.Reference
	var err error
	if name == plumbing.HEAD {
		r, err = store.HEAD()
	} else {
		r, err = store.Reference(name)
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return resolveRefValue(store, r)
}

// resolveRefValue follows a chain of symbolic references down to the
// hash reference at the end of it.
func resolveRefValue(store RefResolver, r *plumbing.Reference) (plumbing.Hash, error) {
	seen := make(map[plumbing.ReferenceName]bool)
	for r.Type() == plumbing.SymbolicReference {
		if seen[r.Name()] {
			return plumbing.ZeroHash, errors.New("revparse: symbolic reference cycle")
		}
		seen[r.Name()] = true
		next, err := store.Reference(r.Target())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		r = next
	}
	return r.Hash(), nil
}
