// Package notes implements the Note Codec: a deterministic, TOML-backed
// text encoding for the per-topic-commit merge records fusionner stores as
// Git notes.
package notes

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// NoteOrigin identifies this tool as the author of a note, written into
// every encoded note's "_note_origin" field.
const NoteOrigin = "fusionner"

// CurrentVersion is the only "_version" value this codec accepts on decode.
const CurrentVersion = 1

// ErrInvalidNote is returned when decoding fails because the input is
// malformed or is missing required fields.
var ErrInvalidNote = errors.New("notes: invalid note")

// ErrVersionMismatch is returned when a note decodes structurally but
// carries a "_version" other than CurrentVersion. Callers log this and may
// still use the decoded Note.
var ErrVersionMismatch = errors.New("notes: version mismatch")

// Merge describes one speculative merge recorded against a target
// reference.
type Merge struct {
	MergeOid              string   `toml:"merge_oid"`
	TargetParentOid       string   `toml:"target_parent_oid"`
	TargetParentReference string   `toml:"target_parent_reference"`
	ParentsOid            []string `toml:"parents_oid"`
	MergeReference        string   `toml:"merge_reference"`
}

// Note is the per-topic-commit record persisted as a Git note. At most one
// Merge exists per target reference; AddMerge enforces the invariant.
type Note struct {
	NoteOrigin string           `toml:"_note_origin"`
	Version    int              `toml:"_version"`
	Merges     map[string]Merge `toml:"merges"`
}

// New returns an empty Note stamped with the current origin and version.
func New() Note {
	return Note{
		NoteOrigin: NoteOrigin,
		Version:    CurrentVersion,
		Merges:     map[string]Merge{},
	}
}

// AddMerge inserts m under targetRef, replacing and returning any prior
// entry for that reference.
func (n *Note) AddMerge(targetRef string, m Merge) (previous *Merge) {
	if n.Merges == nil {
		n.Merges = map[string]Merge{}
	}
	if old, ok := n.Merges[targetRef]; ok {
		previous = &old
	}
	n.Merges[targetRef] = m
	return previous
}

// Encode renders note as deterministic TOML text suitable as a Git note
// blob body. Map iteration order (target references) is sorted so that
// identical notes always encode identically.
func Encode(note Note) (string, error) {
	// Write the TOML text directly: the top-level scalars first, then one
	// merges table per target reference in sorted key order.
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "_note_origin = %q\n", note.NoteOrigin)
	fmt.Fprintf(&buf, "_version = %d\n", note.Version)

	keys := make([]string, 0, len(note.Merges))
	for k := range note.Merges {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		m := note.Merges[k]
		buf.WriteByte('\n')
		fmt.Fprintf(&buf, "[merges.%q]\n", k)
		fmt.Fprintf(&buf, "merge_oid = %q\n", m.MergeOid)
		fmt.Fprintf(&buf, "target_parent_oid = %q\n", m.TargetParentOid)
		fmt.Fprintf(&buf, "target_parent_reference = %q\n", m.TargetParentReference)
		if err := encodeStringArray(&buf, "parents_oid", m.ParentsOid); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidNote, err)
		}
		fmt.Fprintf(&buf, "merge_reference = %q\n", m.MergeReference)
	}

	return buf.String(), nil
}

func encodeStringArray(buf *bytes.Buffer, key string, values []string) error {
	buf.WriteString(key)
	buf.WriteString(" = [")
	for i, v := range values {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(buf, "%q", v)
	}
	buf.WriteString("]\n")
	return nil
}

// Decode parses a note blob body. It fails with ErrInvalidNote on malformed
// input or missing required fields. If the decoded "_version" is not
// CurrentVersion, it returns the decoded Note alongside ErrVersionMismatch
// so the caller may log and continue.
func Decode(text string) (Note, error) {
	var note Note
	meta, err := toml.Decode(text, &note)
	if err != nil {
		return Note{}, fmt.Errorf("%w: %v", ErrInvalidNote, err)
	}

	if note.NoteOrigin == "" {
		return Note{}, fmt.Errorf("%w: missing _note_origin", ErrInvalidNote)
	}
	if note.Version == 0 {
		return Note{}, fmt.Errorf("%w: missing _version", ErrInvalidNote)
	}
	_ = meta

	if note.Version != CurrentVersion {
		return note, fmt.Errorf("%w: note has version %d, expected %d", ErrVersionMismatch, note.Version, CurrentVersion)
	}

	for ref, m := range note.Merges {
		if m.MergeOid == "" || m.TargetParentOid == "" || m.MergeReference == "" {
			return Note{}, fmt.Errorf("%w: merge entry for %q missing required field", ErrInvalidNote, ref)
		}
	}

	return note, nil
}
