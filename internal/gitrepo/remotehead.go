package gitrepo

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// RemoteHead wraps one advertised reference from a remote's ls-remote
// response. go-git's plumbing.Reference already distinguishes symbolic from
// hash references, so Flatten needs no second round trip the way the
// original's libgit2-backed RemoteHead did.
type RemoteHead struct {
	ref *plumbing.Reference
}

// NewRemoteHead wraps a raw reference advertised by a remote.
func NewRemoteHead(ref *plumbing.Reference) RemoteHead {
	return RemoteHead{ref: ref}
}

// Name is the advertised reference name, e.g. "HEAD" or "refs/heads/master".
func (h RemoteHead) Name() string {
	return h.ref.Name().String()
}

// Oid is the hash this reference points at directly. For a symbolic
// reference this is the zero hash; use Flatten to resolve through the
// symref target first.
func (h RemoteHead) Oid() plumbing.Hash {
	return h.ref.Hash()
}

// Flatten returns the symref target name if this head is symbolic (e.g.
// "HEAD" → "refs/heads/master"), else its own name.
func (h RemoteHead) Flatten() string {
	if h.ref.Type() == plumbing.SymbolicReference {
		return h.ref.Target().String()
	}
	return h.ref.Name().String()
}

// IsSymbolic reports whether this head is a symbolic reference.
func (h RemoteHead) IsSymbolic() bool {
	return h.ref.Type() == plumbing.SymbolicReference
}
