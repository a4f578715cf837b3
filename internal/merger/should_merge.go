package merger

import "github.com/lawliet89/fusionner/internal/notes"

// ShouldMergeKind identifies which of the four branches of
// SPEC_FULL.md §4.4.5 a ShouldMergeResult represents.
type ShouldMergeKind int

const (
	// KindMerge means a new merge must be performed: Note is nil if no
	// note exists yet for the topic commit ("Merge(None)"), or non-nil
	// if the target has advanced past every existing record
	// ("Merge(Some(note))").
	KindMerge ShouldMergeKind = iota
	// KindExistingSameTargetReference means the topic is already
	// up to date against target_ref; no work is needed.
	KindExistingSameTargetReference
	// KindExistingDifferentTargetReference means an existing merge
	// commit, recorded under a different target reference, applies
	// unchanged to target_ref too; only the note needs updating.
	KindExistingDifferentTargetReference
)

// ShouldMergeResult is the decision should_merge returns.
type ShouldMergeResult struct {
	Kind ShouldMergeKind

	// Note is the existing note, if any. Always non-nil except for
	// KindMerge with no prior note.
	Note *notes.Note

	// ProposedMerge is populated only for KindExistingDifferentTargetReference.
	ProposedMerge *notes.Merge
}
