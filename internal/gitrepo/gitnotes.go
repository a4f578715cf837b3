package gitrepo

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/lawliet89/fusionner/internal/refspec"
)

// ErrNoteMissing is returned when no note blob exists for a given topic oid
// under a notes namespace. Per SPEC_FULL.md §7 this is expected during
// normal operation and must not be logged as an error.
var ErrNoteMissing = errors.New("gitrepo: no note for commit")

// NotesRefName returns the full reference name of a notes namespace, e.g.
// "refs/notes/fusionner". go-git has no high-level notes API, so this
// package hand-builds git's own notes representation: a ref pointing at a
// chain of commits whose tree holds one blob per topic commit, keyed by the
// topic's full 40-hex object id as a flat (non-fanout) path — the same
// layout `git notes` itself uses below the point where it starts
// sharding into fanout directories. Decision (3) in DESIGN.md: this
// namespace is always resolved as a reference, never treated as a bare
// string.
func NotesRefName(namespace string) string {
	return "refs/notes/" + namespace
}

// FindNote returns the raw note blob text recorded for topicOid under
// namespace, or ErrNoteMissing if no notes ref, or no entry for topicOid,
// exists yet.
func (r *Repository) FindNote(namespace string, topicOid plumbing.Hash) (string, error) {
	notesTree, err := r.notesTree(namespace)
	if err != nil {
		if errors.Is(err, ErrNoteMissing) {
			return "", err
		}
		return "", err
	}

	key := topicOid.String()
	file, err := notesTree.File(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoteMissing, key)
	}

	reader, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("gitrepo: open note blob for %s: %w", key, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("gitrepo: read note blob for %s: %w", key, err)
	}
	return string(content), nil
}

// AddNote overwrites any existing note for topicOid under namespace with
// text, authored by the repository signature, and returns the new note
// blob's oid.
func (r *Repository) AddNote(namespace string, topicOid plumbing.Hash, text string) (plumbing.Hash, error) {
	refName := plumbing.ReferenceName(NotesRefName(namespace))

	existingFiles := map[string]treeEntry{}
	var parents []plumbing.Hash

	if ref, err := r.raw.Reference(refName, true); err == nil {
		parents = append(parents, ref.Hash())
		commit, err := r.raw.CommitObject(ref.Hash())
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("gitrepo: notes commit %s: %w", ref.Hash(), err)
		}
		tree, err := commit.Tree()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("gitrepo: notes tree %s: %w", ref.Hash(), err)
		}
		existingFiles, err = flattenTree(tree)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("gitrepo: flatten notes tree: %w", err)
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, fmt.Errorf("gitrepo: resolve %s: %w", refName, err)
	}

	blobHash, err := r.writeBlob(text)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitrepo: write note blob: %w", err)
	}

	key := topicOid.String()
	existingFiles[key] = treeEntry{mode: filemode.Regular, hash: blobHash}

	treeHash, err := buildTree(r.raw.Storer, existingFiles)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: notes tree: %v", ErrTreeWrite, err)
	}

	signature := r.Signature()
	commit := &object.Commit{
		Author:       signature,
		Committer:    signature,
		Message:      fmt.Sprintf("Notes added by %q for %s", NoteAuthorAgent, key),
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := r.raw.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitrepo: encode notes commit: %w", err)
	}
	commitHash, err := r.raw.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitrepo: store notes commit: %w", err)
	}

	if err := r.raw.Storer.SetReference(plumbing.NewHashReference(refName, commitHash)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s: %v", ErrRefUpdate, refName, err)
	}

	return blobHash, nil
}

// NoteAuthorAgent identifies fusionner as the author of note commits.
const NoteAuthorAgent = "fusionner"

// AddNoteRefspec returns the forced fetch/push refspec that keeps a notes
// namespace's ref mirrored 1:1 between the local mirror and the remote
// (SPEC_FULL.md §4.4.1): "+refs/notes/<ns>:refs/notes/<ns>".
func AddNoteRefspec(namespace string) string {
	ref := NotesRefName(namespace)
	return refspec.Refspec{Force: true, Src: ref, Dst: ref}.Render()
}

func (r *Repository) notesTree(namespace string) (*object.Tree, error) {
	refName := plumbing.ReferenceName(NotesRefName(namespace))
	ref, err := r.raw.Reference(refName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%w: notes ref %s not found", ErrNoteMissing, refName)
		}
		return nil, fmt.Errorf("gitrepo: resolve %s: %w", refName, err)
	}

	commit, err := r.raw.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("gitrepo: notes commit %s: %w", ref.Hash(), err)
	}
	return commit.Tree()
}

func (r *Repository) writeBlob(text string) (plumbing.Hash, error) {
	obj := r.raw.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	return r.raw.Storer.SetEncodedObject(obj)
}
