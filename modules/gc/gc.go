// Package gc implements repacking: computing the set of objects
// reachable from every branch and tag, folding them into a single new
// pack plus index, and optionally pruning the now-redundant loose
// copies. It is the one porcelain operation that actually drives
// modules/pack's writer end to end in daily use, the way pygit's own
// gc.py drives pygit's pack writer.
package gc

import (
	"context"
	"sort"

	"github.com/gitcore/gitcore/modules/object"
	"github.com/gitcore/gitcore/modules/plumbing"
)

// Store is the subset of modules/odb.Database a repack needs: read any
// object regardless of where it currently lives, fold a set of objects
// into one new pack, and drop a loose copy once it's safely packed.
type Store interface {
	GetRaw(oid plumbing.Hash) (object.Type, []byte, error)
	WritePack(objectIDs []plumbing.Hash) (plumbing.Hash, error)
	RemoveLoose(oid plumbing.Hash) error
}

// RefStore is the subset of modules/refs.Store a repack needs: the full
// set of refs to walk for reachability roots.
type RefStore interface {
	All() ([]*plumbing.Reference, error)
}

// Repack computes every object reachable from refs/heads/* and
// refs/tags/* (loose or already packed), writes them into one new pack
// plus index via store, and, if pruneLoose is set, removes their loose
// copies afterward. Returns the zero hash and a nil error if nothing is
// reachable. ctx is checked between objects so a large repack can be
// cancelled; the core has no other notion of a deadline.
func Repack(ctx context.Context, store Store, refStore RefStore, pruneLoose bool) (plumbing.Hash, error) {
	reachable, err := reachableObjects(ctx, store, refStore)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(reachable) == 0 {
		return plumbing.ZeroHash, nil
	}

	ids := make([]plumbing.Hash, 0, len(reachable))
	for oid := range reachable {
		ids = append(ids, oid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	packSHA, err := store.WritePack(ids)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if pruneLoose {
		for _, oid := range ids {
			if err := ctx.Err(); err != nil {
				return packSHA, err
			}
			if err := store.RemoveLoose(oid); err != nil {
				return packSHA, err
			}
		}
	}
	return packSHA, nil
}

// reachableObjects walks every branch and tag tip: commits by parent,
// trees and blobs underneath each commit's tree, and the tag object
// itself when the ref points at one (peeled to find its underlying
// commit, which is walked the same way).
func reachableObjects(ctx context.Context, store Store, refStore RefStore) (map[plumbing.Hash]bool, error) {
	refs, err := refStore.All()
	if err != nil {
		return nil, err
	}

	var tips []plumbing.Hash
	seenObj := make(map[plumbing.Hash]bool)
	for _, ref := range refs {
		if !ref.Name().IsBranch() && !ref.Name().IsTag() {
			continue
		}
		oid := ref.Hash()
		if oid == plumbing.ZeroHash {
			continue
		}
		commit, ok, err := peelToCommit(store, oid, seenObj)
		if err != nil {
			return nil, err
		}
		if ok {
			tips = append(tips, commit)
		}
	}

	seenCommit := make(map[plumbing.Hash]bool)
	stack := append([]plumbing.Hash(nil), tips...)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seenCommit[h] {
			continue
		}
		seenCommit[h] = true
		seenObj[h] = true

		_, raw, err := store.GetRaw(h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		c, err := object.DecodeCommit(raw)
		if err != nil {
			return nil, err
		}
		if err := walkTree(ctx, store, c.TreeHash, seenObj); err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if !seenCommit[p] {
				stack = append(stack, p)
			}
		}
	}
	return seenObj, nil
}

// peelToCommit follows a tag chain (tag objects may point at other
// tags) down to the commit it ultimately names, recording every tag
// object visited along the way as reachable in its own right.
func peelToCommit(store Store, oid plumbing.Hash, seenObj map[plumbing.Hash]bool) (plumbing.Hash, bool, error) {
	for {
		typ, raw, err := store.GetRaw(oid)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				return plumbing.ZeroHash, false, nil
			}
			return plumbing.ZeroHash, false, err
		}
		switch typ {
		case object.CommitType:
			return oid, true, nil
		case object.TagType:
			seenObj[oid] = true
			tag, err := object.DecodeTag(raw)
			if err != nil {
				return plumbing.ZeroHash, false, err
			}
			oid = tag.Object
		default:
			return plumbing.ZeroHash, false, nil
		}
	}
}

func walkTree(ctx context.Context, store Store, root plumbing.Hash, seen map[plumbing.Hash]bool) error {
	stack := []plumbing.Hash{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			continue
		}
		seen[h] = true

		_, raw, err := store.GetRaw(h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return err
		}
		tree, err := object.DecodeTree(raw)
		if err != nil {
			return err
		}
		for _, e := range tree.Entries {
			if e.Mode == object.ModeGitlink || seen[e.Hash] {
				continue
			}
			if e.Mode == object.ModeDir {
				stack = append(stack, e.Hash)
			} else {
				seen[e.Hash] = true
			}
		}
	}
	return nil
}
