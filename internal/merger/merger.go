package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/lawliet89/fusionner/internal/gitrepo"
	"github.com/lawliet89/fusionner/internal/notes"
)

// DefaultNamespace is the Git notes namespace used when none is configured
// (SPEC_FULL.md §6).
const DefaultNamespace = "fusionner"

// Merger is the state engine of SPEC_FULL.md §4.4: it owns a bound remote, a
// notes namespace, and a Merge-Reference Namer, and decides per topic commit
// whether a speculative merge must be created, reused, or aliased.
type Merger struct {
	repo      *gitrepo.Repository
	remote    *gitrepo.Remote
	namespace string
	namer     Namer
}

// New constructs a Merger bound to remote under repo, using namespace (or
// DefaultNamespace if empty) and namer (or DefaultNamer if nil).
func New(repo *gitrepo.Repository, remote *gitrepo.Remote, namespace string, namer Namer) *Merger {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if namer == nil {
		namer = DefaultNamer
	}
	return &Merger{repo: repo, remote: remote, namespace: namespace, namer: namer}
}

// AddNoteRefspecs installs "+refs/notes/<ns>:refs/notes/<ns>" as both a
// fetch and push refspec on the bound remote. Idempotent: AddFetchRefspec
// and AddPushRefspec both dedupe.
func (m *Merger) AddNoteRefspecs() error {
	spec := gitrepo.AddNoteRefspec(m.namespace)
	if err := m.remote.AddFetchRefspec(spec); err != nil {
		return err
	}
	return m.remote.AddPushRefspec(spec)
}

// FetchNotes fetches the notes reference from the remote into the local
// mirror.
func (m *Merger) FetchNotes(ctx context.Context) error {
	return m.remote.Fetch(ctx, []string{gitrepo.NotesRefName(m.namespace)})
}

// FindNote looks up and decodes the note for topicOid. It returns
// gitrepo.ErrNoteMissing if no note exists, or notes.ErrInvalidNote if
// decoding fails. A notes.ErrVersionMismatch is logged and the decoded note
// is still returned, per SPEC_FULL.md §7.
func (m *Merger) FindNote(topicOid plumbing.Hash) (notes.Note, error) {
	text, err := m.repo.FindNote(m.namespace, topicOid)
	if err != nil {
		return notes.Note{}, err
	}

	note, err := notes.Decode(text)
	if errors.Is(err, notes.ErrVersionMismatch) {
		logrus.Warnf("Note for %s has an unexpected version: %v", topicOid, err)
		return note, nil
	}
	if err != nil {
		return notes.Note{}, err
	}
	return note, nil
}

// AddNote overwrites any existing note for topicOid with note, authored by
// the repository signature, and returns the new note blob's oid.
func (m *Merger) AddNote(note notes.Note, topicOid plumbing.Hash) (plumbing.Hash, error) {
	text, err := notes.Encode(note)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return m.repo.AddNote(m.namespace, topicOid, text)
}

// ShouldMerge implements the pure decision function of SPEC_FULL.md §4.4.5.
func (m *Merger) ShouldMerge(topicOid, targetOid plumbing.Hash, topicRef, targetRef string) (ShouldMergeResult, error) {
	note, err := m.FindNote(topicOid)
	if errors.Is(err, gitrepo.ErrNoteMissing) {
		return ShouldMergeResult{Kind: KindMerge, Note: nil}, nil
	}
	if err != nil {
		return ShouldMergeResult{}, err
	}

	targetOidStr := targetOid.String()
	matches := map[string]notes.Merge{}
	for ref, mg := range note.Merges {
		if mg.TargetParentOid == targetOidStr {
			matches[ref] = mg
		}
	}

	if len(matches) == 0 {
		return ShouldMergeResult{Kind: KindMerge, Note: &note}, nil
	}

	if _, ok := matches[targetRef]; ok {
		return ShouldMergeResult{Kind: KindExistingSameTargetReference, Note: &note}, nil
	}

	// All matches share the same merge_oid by construction of step 2
	// (they all merged the same topic_oid against the same target_oid).
	var any notes.Merge
	for _, mg := range matches {
		any = mg
		break
	}

	proposed := notes.Merge{
		MergeOid:              any.MergeOid,
		TargetParentOid:       targetOidStr,
		TargetParentReference: targetRef,
		ParentsOid:            any.ParentsOid,
		MergeReference:        m.namer.Name(topicRef, targetRef, topicOid, targetOid),
	}

	return ShouldMergeResult{Kind: KindExistingDifferentTargetReference, Note: &note, ProposedMerge: &proposed}, nil
}

// Merge performs the three-way merge of SPEC_FULL.md §4.4.6 and returns the
// resulting record. It does not touch notes; callers combine it with
// AddNote per the should_merge branch they are handling.
func (m *Merger) Merge(topicOid, targetOid plumbing.Hash, topicRef, targetRef string) (notes.Merge, error) {
	destRef := m.namer.Name(topicRef, targetRef, topicOid, targetOid)

	result, err := m.repo.CreateMergeCommit(topicOid, targetOid, topicRef, targetRef, destRef)
	if err != nil {
		return notes.Merge{}, err
	}

	return notes.Merge{
		MergeOid:              result.MergeOid.String(),
		TargetParentOid:       targetOid.String(),
		TargetParentReference: targetRef,
		ParentsOid:            []string{topicOid.String()},
		MergeReference:        result.MergeReference,
	}, nil
}

// CheckAndMerge is the high-level entry point the Loop Driver calls per
// topic per tick (SPEC_FULL.md §4.4.7). If push is true, it force-pushes
// "refs/notes/<ns>" together with any merge reference created or aliased in
// this call, in one push.
func (m *Merger) CheckAndMerge(ctx context.Context, topicOid, targetOid plumbing.Hash, topicRef, targetRef string, push bool) (notes.Merge, ShouldMergeResult, error) {
	decision, err := m.ShouldMerge(topicOid, targetOid, topicRef, targetRef)
	if err != nil {
		return notes.Merge{}, ShouldMergeResult{}, err
	}

	var result notes.Merge
	var pushRefs []string

	switch decision.Kind {
	case KindMerge:
		mg, err := m.Merge(topicOid, targetOid, topicRef, targetRef)
		if err != nil {
			return notes.Merge{}, decision, err
		}

		note := decision.Note
		if note == nil {
			fresh := notes.New()
			note = &fresh
		}
		note.AddMerge(targetRef, mg)
		if _, err := m.AddNote(*note, topicOid); err != nil {
			return notes.Merge{}, decision, err
		}

		result = mg
		pushRefs = []string{mg.MergeReference}

	case KindExistingSameTargetReference:
		existing := decision.Note.Merges[targetRef]
		if err := m.remote.Fetch(ctx, []string{existing.MergeReference}); err != nil {
			logrus.Warnf("Failed to fetch existing merge reference %s: %v", existing.MergeReference, err)
		}
		result = existing

	case KindExistingDifferentTargetReference:
		proposed := *decision.ProposedMerge

		mergeOid, err := parseHash(proposed.MergeOid)
		if err != nil {
			return notes.Merge{}, decision, fmt.Errorf("merger: decode merge oid %q: %w", proposed.MergeOid, err)
		}
		if err := m.repo.SetMergeReference(proposed.MergeReference, mergeOid); err != nil {
			return notes.Merge{}, decision, err
		}

		note := *decision.Note
		note.AddMerge(targetRef, proposed)
		if _, err := m.AddNote(note, topicOid); err != nil {
			return notes.Merge{}, decision, err
		}

		result = proposed
		pushRefs = []string{proposed.MergeReference}

	default:
		return notes.Merge{}, decision, fmt.Errorf("merger: unknown should-merge kind %d", decision.Kind)
	}

	if push {
		refs := append([]string{gitrepo.NotesRefName(m.namespace)}, pushRefs...)
		if err := m.remote.Push(ctx, refs); err != nil {
			return result, decision, err
		}
	}

	return result, decision, nil
}

func parseHash(s string) (plumbing.Hash, error) {
	if !plumbing.IsHash(s) {
		return plumbing.ZeroHash, fmt.Errorf("not a valid object id: %q", s)
	}
	return plumbing.NewHash(s), nil
}
