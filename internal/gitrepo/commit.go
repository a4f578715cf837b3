package gitrepo

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MergeResult carries everything the Merger core needs to build a notes.Merge
// record out of a completed three-way merge (SPEC_FULL.md §4.4.6 step 6).
type MergeResult struct {
	MergeOid       plumbing.Hash
	MergeReference string
}

// CreateMergeCommit performs the full three-way merge of SPEC_FULL.md
// §4.4.6: look up both commits, merge their trees against the best common
// ancestor, author a merge commit with parents [target, topic], and
// force-update destRef to point at it.
//
// If destRef already has a reference, it is replaced (force semantics). A
// *ConflictError is returned, not wrapped further, so callers can use
// errors.As to detect conflicts distinctly from other tree-write failures.
func (r *Repository) CreateMergeCommit(topicOid, targetOid plumbing.Hash, topicRef, targetRef, destRef string) (*MergeResult, error) {
	topicCommit, err := r.raw.CommitObject(topicOid)
	if err != nil {
		return nil, fmt.Errorf("%w: topic commit %s: %v", ErrCommitLookup, topicOid, err)
	}
	targetCommit, err := r.raw.CommitObject(targetOid)
	if err != nil {
		return nil, fmt.Errorf("%w: target commit %s: %v", ErrCommitLookup, targetOid, err)
	}

	baseTree, err := r.mergeBaseTree(targetCommit, topicCommit)
	if err != nil {
		return nil, err
	}

	topicTree, err := topicCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: topic tree %s: %v", ErrCommitLookup, topicOid, err)
	}
	targetTree, err := targetCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: target tree %s: %v", ErrCommitLookup, targetOid, err)
	}

	// "ours" is the target (first parent, matching `git merge` convention);
	// "theirs" is the topic being merged in.
	mergedTreeHash, err := r.ThreeWayMerge(baseTree, targetTree, topicTree)
	if err != nil {
		return nil, err
	}

	signature := r.Signature()
	commit := &object.Commit{
		Author:    signature,
		Committer: signature,
		Message:   fmt.Sprintf("Merge %s (%s) into %s (%s)", topicRef, topicOid, targetRef, targetOid),
		TreeHash:  mergedTreeHash,
		ParentHashes: []plumbing.Hash{
			targetCommit.Hash,
			topicCommit.Hash,
		},
	}

	obj := r.raw.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return nil, fmt.Errorf("%w: encode merge commit: %v", ErrTreeWrite, err)
	}
	mergeOid, err := r.raw.Storer.SetEncodedObject(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: store merge commit: %v", ErrTreeWrite, err)
	}

	refName := plumbing.ReferenceName(destRef)
	newRef := plumbing.NewHashReference(refName, mergeOid)
	if err := r.raw.Storer.SetReference(newRef); err != nil {
		return nil, fmt.Errorf("%w: update %s: %v", ErrRefUpdate, destRef, err)
	}

	return &MergeResult{MergeOid: mergeOid, MergeReference: destRef}, nil
}

// SetMergeReference force-updates refName to point at oid without creating
// any new commit, used to publish an existing merge commit under an alias
// reference (SPEC_FULL.md §4.4.5 step 5, the
// "ExistingMergeInDifferentTargetReference" branch — the same underlying
// commit applying to a second target reference).
func (r *Repository) SetMergeReference(refName string, oid plumbing.Hash) error {
	ref := plumbing.NewHashReference(plumbing.ReferenceName(refName), oid)
	if err := r.raw.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRefUpdate, refName, err)
	}
	return nil
}

// mergeBaseTree resolves the best common ancestor of a and b and returns its
// tree. If the two commits have no common ancestor, it falls back to the
// empty tree, which degrades the merge to a union of both sides' paths
// (equivalent to treating every path as added on at least one side).
func (r *Repository) mergeBaseTree(a, b *object.Commit) (*object.Tree, error) {
	bases, err := a.MergeBase(b)
	if err != nil {
		return nil, fmt.Errorf("%w: merge-base(%s, %s): %v", ErrCommitLookup, a.Hash, b.Hash, err)
	}
	if len(bases) == 0 {
		return &object.Tree{}, nil
	}
	tree, err := bases[0].Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: merge-base tree: %v", ErrCommitLookup, err)
	}
	return tree, nil
}
