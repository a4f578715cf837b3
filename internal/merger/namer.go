// Package merger implements the Merge-Reference Namer and the Merger core:
// the state engine that decides, per watched topic commit, whether a
// speculative merge must be created, reused, or aliased onto a new target
// reference (SPEC_FULL.md §4.3–§4.4).
package merger

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/lawliet89/fusionner/internal/gitrepo"
)

// Namer maps a (topicRef, targetRef, topicOid, targetOid) tuple to the
// canonical destination refname a speculative merge commit is published
// under.
type Namer interface {
	Name(topicRef, targetRef string, topicOid, targetOid plumbing.Hash) string
}

// NamerFunc adapts a plain function to Namer.
type NamerFunc func(topicRef, targetRef string, topicOid, targetOid plumbing.Hash) string

// Name implements Namer.
func (f NamerFunc) Name(topicRef, targetRef string, topicOid, targetOid plumbing.Hash) string {
	return f(topicRef, targetRef, topicOid, targetOid)
}

// DefaultNamer implements the default rule of SPEC_FULL.md §4.3: take the
// last "/"-delimited segment of topicRef and targetRef and form
// "refs/fusionner/<topic_tail>/<target_tail>".
//
// Caveat (documented, not fixed — see DESIGN.md Open Question 1): two topic
// refs whose last segments collide (e.g. "refs/heads/a/x" and
// "refs/heads/b/x") share a merge reference. Callers who need uniqueness
// should supply a NamerFunc instead.
var DefaultNamer Namer = NamerFunc(func(topicRef, targetRef string, _, _ plumbing.Hash) string {
	return "refs/fusionner/" + lastSegment(topicRef) + "/" + lastSegment(targetRef)
})

func lastSegment(ref string) string {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}

// MergeRefspecGlob is the glob covering every merge reference the namer
// produces, used by AddDefaultRefspecs to install a single push refspec
// that covers all of them.
const MergeRefspecGlob = "refs/fusionner/*"

// AddDefaultRefspecs installs a forced push refspec covering
// "refs/fusionner/*" so newly created merge references are pushable in one
// call (SPEC_FULL.md §4.3).
func AddDefaultRefspecs(r *gitrepo.Remote) error {
	return r.AddPushRefspec("+" + MergeRefspecGlob + ":" + MergeRefspecGlob)
}
