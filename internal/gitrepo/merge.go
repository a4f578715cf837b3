package gitrepo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrCommitLookup wraps a failure to resolve a commit object
// (SPEC_FULL.md §7 CommitLookup).
var ErrCommitLookup = errors.New("gitrepo: commit lookup failed")

// ErrTreeWrite wraps a failure while persisting a merged tree
// (SPEC_FULL.md §7 TreeWrite).
var ErrTreeWrite = errors.New("gitrepo: tree write failed")

// ErrRefUpdate wraps a failure to move a reference to a new commit
// (SPEC_FULL.md §7 RefUpdate).
var ErrRefUpdate = errors.New("gitrepo: reference update failed")

// ConflictError is returned when the in-memory three-way merge finds paths
// that changed differently on both sides — go-git's analogue of libgit2's
// "index has nonzero stage entries" (SPEC_FULL.md §4.4.9 step 4).
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("gitrepo: merge conflict on %d path(s): %s", len(e.Paths), strings.Join(e.Paths, ", "))
}

// treeEntry is the flattened (mode, blob hash) pair for one path, used to
// classify three-way differences without walking go-git's nested Tree
// objects a second time.
type treeEntry struct {
	mode filemode.FileMode
	hash plumbing.Hash
}

// flattenTree walks tree's files into a path → treeEntry map using
// Tree.Files(), the same flattened-walk primitive the teacher's
// commands/merge.go uses for tree traversal.
func flattenTree(tree *object.Tree) (map[string]treeEntry, error) {
	out := map[string]treeEntry{}
	err := tree.Files().ForEach(func(f *object.File) error {
		out[f.Name] = treeEntry{mode: f.Mode, hash: f.Hash}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolvePath applies the three-way classification rule of
// SPEC_FULL.md §4.4.9 step 2 to one path. A nil *treeEntry means the path is
// absent on that side. It returns the winning entry (nil means "delete this
// path") and whether the path conflicts.
func resolvePath(base, ours, theirs *treeEntry) (result *treeEntry, conflict bool) {
	if ours != nil && theirs != nil && *ours == *theirs {
		return ours, false
	}
	if ours == nil && theirs == nil {
		return nil, false
	}

	if base != nil {
		oursChanged := ours == nil || *ours != *base
		theirsChanged := theirs == nil || *theirs != *base

		switch {
		case !oursChanged && !theirsChanged:
			return base, false
		case oursChanged && !theirsChanged:
			return ours, false
		case !oursChanged && theirsChanged:
			return theirs, false
		default:
			return nil, true
		}
	}

	switch {
	case ours != nil && theirs == nil:
		return ours, false
	case ours == nil && theirs != nil:
		return theirs, false
	case ours == nil && theirs == nil:
		return nil, false
	default:
		return nil, true
	}
}

// ThreeWayMerge merges theirs into ours against their common ancestor base,
// and returns the resulting tree hash. If any path conflicts, it returns a
// *ConflictError listing every conflicting path and writes nothing.
func (r *Repository) ThreeWayMerge(base, ours, theirs *object.Tree) (plumbing.Hash, error) {
	baseFiles, err := flattenTree(base)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: flatten base tree: %v", ErrTreeWrite, err)
	}
	ourFiles, err := flattenTree(ours)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: flatten our tree: %v", ErrTreeWrite, err)
	}
	theirFiles, err := flattenTree(theirs)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: flatten their tree: %v", ErrTreeWrite, err)
	}

	paths := map[string]struct{}{}
	for p := range baseFiles {
		paths[p] = struct{}{}
	}
	for p := range ourFiles {
		paths[p] = struct{}{}
	}
	for p := range theirFiles {
		paths[p] = struct{}{}
	}

	merged := map[string]treeEntry{}
	var conflicts []string

	for p := range paths {
		b, o, t := lookup(baseFiles, p), lookup(ourFiles, p), lookup(theirFiles, p)
		result, conflict := resolvePath(b, o, t)
		if conflict {
			conflicts = append(conflicts, p)
			continue
		}
		if result != nil {
			merged[p] = *result
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return plumbing.ZeroHash, &ConflictError{Paths: conflicts}
	}

	hash, err := buildTree(r.raw.Storer, merged)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrTreeWrite, err)
	}
	return hash, nil
}

func lookup(m map[string]treeEntry, path string) *treeEntry {
	if e, ok := m[path]; ok {
		return &e
	}
	return nil
}

// dirNode is one level of the in-memory tree being rebuilt from a flat
// path → treeEntry map, the recursive counterpart of Tree.Files()'s flat
// walk.
type dirNode struct {
	files map[string]treeEntry
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: map[string]treeEntry{}, dirs: map[string]*dirNode{}}
}

// buildTree writes a nested tree object for the given flat path map and
// returns its hash, mirroring the commit/tree encode-and-set pattern of the
// teacher's commands/merge_pr.go for the tree case instead of the commit
// case.
func buildTree(s storer.EncodedObjectStorer, files map[string]treeEntry) (plumbing.Hash, error) {
	root := newDirNode()
	for path, entry := range files {
		segments := strings.Split(path, "/")
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node.dirs[seg]
			if !ok {
				child = newDirNode()
				node.dirs[seg] = child
			}
			node = child
		}
		node.files[segments[len(segments)-1]] = entry
	}

	return writeDirNode(s, root)
}

func writeDirNode(s storer.EncodedObjectStorer, node *dirNode) (plumbing.Hash, error) {
	var entries []object.TreeEntry

	for name, entry := range node.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: entry.mode, Hash: entry.hash})
	}
	for name, child := range node.dirs {
		hash, err := writeDirNode(s, child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tree := &object.Tree{Entries: entries}
	obj := s.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.SetEncodedObject(obj)
}
