package gitrepo

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sirupsen/logrus"

	"github.com/lawliet89/fusionner/internal/refspec"
)

// ErrRemoteUnreachable wraps any connect/ls-remote/fetch/push transport
// failure (SPEC_FULL.md §7 ErrRemoteUnreachable).
var ErrRemoteUnreachable = errors.New("gitrepo: remote unreachable")

// ErrUnknownTargetRef is returned by ResolveTargetRef when the requested
// target reference is absent from the remote's advertisement.
var ErrUnknownTargetRef = errors.New("gitrepo: unknown target reference")

// Remote is a bound handle to one of a Repository's remotes. go-git has no
// persistent "connection" the way libgit2 does — every List/Fetch/Push call
// opens and tears down its own transport session — so Connect/Disconnect
// here are no-ops kept only so callers can mirror the original's lifecycle
// (SPEC_FULL.md §5 "A single Remote handle is held across the tick").
type Remote struct {
	repo *Repository
	name string
	raw  *gogit.Remote
	auth transport.AuthMethod

	fetchRefSpecs []config.RefSpec
	pushRefSpecs  []config.RefSpec
}

// Name is the configured name of this remote (e.g. "origin").
func (r *Remote) Name() string {
	return r.name
}

// Connect is a lifecycle no-op; see the Remote doc comment.
func (r *Remote) Connect(context.Context) error {
	return nil
}

// Disconnect is a lifecycle no-op; see the Remote doc comment.
func (r *Remote) Disconnect() {}

// AddFetchRefspec appends spec to the refspecs used on every subsequent
// Fetch call, ignoring duplicates.
func (r *Remote) AddFetchRefspec(spec string) error {
	rs := config.RefSpec(spec)
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("gitrepo: invalid fetch refspec %q: %w", spec, err)
	}
	for _, existing := range r.fetchRefSpecs {
		if existing == rs {
			return nil
		}
	}
	r.fetchRefSpecs = append(r.fetchRefSpecs, rs)
	return nil
}

// AddPushRefspec appends spec to the refspecs used on every subsequent Push
// call, ignoring duplicates.
func (r *Remote) AddPushRefspec(spec string) error {
	rs := config.RefSpec(spec)
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("gitrepo: invalid push refspec %q: %w", spec, err)
	}
	for _, existing := range r.pushRefSpecs {
		if existing == rs {
			return nil
		}
	}
	r.pushRefSpecs = append(r.pushRefSpecs, rs)
	return nil
}

// List performs `git ls-remote`: it returns every reference the remote
// advertises, without fetching any objects.
func (r *Remote) List(ctx context.Context) ([]RemoteHead, error) {
	logrus.Debug("Retrieving remote references (ls-remote)")
	refs, err := r.raw.ListContext(ctx, &gogit.ListOptions{Auth: r.auth})
	if err != nil {
		return nil, fmt.Errorf("%w: ls-remote %s: %v", ErrRemoteUnreachable, r.name, err)
	}

	heads := make([]RemoteHead, 0, len(refs))
	for _, ref := range refs {
		heads = append(heads, NewRemoteHead(ref))
	}
	return heads, nil
}

// Fetch force-fetches extraRefspecs (rendered with the force bit set) plus
// any refspecs installed via AddFetchRefspec. A source-only refspec is
// fetched into the local reference of the same name.
func (r *Remote) Fetch(ctx context.Context, extraRefspecs []string) error {
	specs := append([]config.RefSpec(nil), r.fetchRefSpecs...)
	for _, s := range extraRefspecs {
		rs := refspec.Parse(s).Forced(true)
		if rs.Dst == "" {
			rs.Dst = rs.Src
		}
		specs = append(specs, config.RefSpec(rs.Render()))
	}
	if len(specs) == 0 {
		return nil
	}

	err := r.raw.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: r.name,
		RefSpecs:   specs,
		Auth:       r.auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: fetch %s: %v", ErrRemoteUnreachable, r.name, err)
	}
	return nil
}

// Push force-pushes refspecs plus any refspecs installed via
// AddPushRefspec. A source-only refspec is pushed to the remote reference
// of the same name.
func (r *Remote) Push(ctx context.Context, refspecs []string) error {
	specs := append([]config.RefSpec(nil), r.pushRefSpecs...)
	for _, s := range refspecs {
		rs := refspec.Parse(s).Forced(true)
		if rs.Dst == "" {
			rs.Dst = rs.Src
		}
		specs = append(specs, config.RefSpec(rs.Render()))
	}
	if len(specs) == 0 {
		return nil
	}

	err := r.raw.PushContext(ctx, &gogit.PushOptions{
		RemoteName: r.name,
		RefSpecs:   specs,
		Auth:       r.auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: push %s: %v", ErrRemoteUnreachable, r.name, err)
	}
	return nil
}

// Head returns the remote's advertised symbolic HEAD target (e.g.
// "refs/heads/master"), or "" if the remote advertises no HEAD.
func (r *Remote) Head(ctx context.Context) (string, error) {
	heads, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	for _, h := range heads {
		if h.Name() == "HEAD" && h.IsSymbolic() {
			return h.Flatten(), nil
		}
	}
	return "", nil
}

// ResolveTargetRef implements the startup target-ref resolution of
// SPEC_FULL.md §4.5: an empty or "HEAD" input resolves through the remote's
// advertised HEAD symref; anything else must appear verbatim in the
// advertisement.
func (r *Remote) ResolveTargetRef(ctx context.Context, input string) (string, error) {
	if input == "" || input == "HEAD" {
		head, err := r.Head(ctx)
		if err != nil {
			return "", err
		}
		if head == "" {
			return "", fmt.Errorf("%w: remote advertises no HEAD symref", ErrUnknownTargetRef)
		}
		return head, nil
	}

	heads, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	for _, h := range heads {
		if h.Name() == input {
			return input, nil
		}
	}
	return "", fmt.Errorf("%w: %q not found in remote advertisement", ErrUnknownTargetRef, input)
}
