package merger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawliet89/fusionner/internal/gitrepo"
)

var testSignature = &object.Signature{Name: "fusionner-test", Email: "test@example.com", When: time.Unix(0, 0)}

// newTestRemote creates a non-bare repository on disk, used as the "remote"
// side of a file:// transport connection -- the same local-transport
// technique the retrieved corpus's integration tests use to exercise real
// fetch/push codepaths without any network.
func newTestRemote(t *testing.T) (path string, repo *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, name, content string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)

	fullPath := filepath.Join(wt.Filesystem.Root(), name)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))

	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("test commit: "+name, &gogit.CommitOptions{Author: testSignature})
	require.NoError(t, err)
	return hash
}

// newTestMirror clones remotePath into a fresh local mirror and returns the
// resulting gitrepo.Repository and its "origin" remote wrapper.
func newTestMirror(t *testing.T, remotePath string) (*gitrepo.Repository, *gitrepo.Remote) {
	t.Helper()
	cfg := gitrepo.RepositoryConfiguration{
		URI:          "file://" + remotePath,
		CheckoutPath: t.TempDir(),
	}
	repo, err := gitrepo.Clone(context.Background(), cfg)
	require.NoError(t, err)

	remote, err := repo.Remote("origin")
	require.NoError(t, err)

	return repo, remote
}

func TestCheckAndMerge_FreshMergeThenUpToDate(t *testing.T) {
	remotePath, remote := newTestRemote(t)
	commitFile(t, remote, "README.md", "hello")
	topicOid := func() plumbing.Hash {
		wt, _ := remote.Worktree()
		require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/topic"), Create: true}))
		return commitFile(t, remote, "feature.txt", "new feature")
	}()
	masterRef, err := remote.Reference(plumbing.ReferenceName("refs/heads/master"), true)
	require.NoError(t, err)
	targetOid := masterRef.Hash()

	repo, remoteHandle := newTestMirror(t, remotePath)
	ctx := context.Background()

	m := New(repo, remoteHandle, "fusionner-test", nil)
	require.NoError(t, m.AddNoteRefspecs())

	mg, decision, err := m.CheckAndMerge(ctx, topicOid, targetOid, "refs/heads/topic", "refs/heads/master", true)
	require.NoError(t, err)
	assert.Equal(t, KindMerge, decision.Kind)
	assert.Equal(t, "refs/fusionner/topic/master", mg.MergeReference)
	assert.Equal(t, targetOid.String(), mg.TargetParentOid)

	// Second tick, nothing changed: should be up to date.
	mg2, decision2, err := m.CheckAndMerge(ctx, topicOid, targetOid, "refs/heads/topic", "refs/heads/master", true)
	require.NoError(t, err)
	assert.Equal(t, KindExistingSameTargetReference, decision2.Kind)
	assert.Equal(t, mg.MergeOid, mg2.MergeOid)
}

func TestCheckAndMerge_AliasAcrossTargetReferences(t *testing.T) {
	remotePath, remote := newTestRemote(t)
	commitFile(t, remote, "README.md", "hello")
	wt, _ := remote.Worktree()
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/topic"), Create: true}))
	topicOid := commitFile(t, remote, "feature.txt", "new feature")

	masterRef, err := remote.Reference(plumbing.ReferenceName("refs/heads/master"), true)
	require.NoError(t, err)
	targetOid := masterRef.Hash()

	// "release" points at the exact same commit as "master".
	require.NoError(t, remote.Storer.SetReference(plumbing.NewHashReference("refs/heads/release", targetOid)))

	repo, remoteHandle := newTestMirror(t, remotePath)
	ctx := context.Background()

	m := New(repo, remoteHandle, "fusionner-test", nil)
	require.NoError(t, m.AddNoteRefspecs())

	_, decision, err := m.CheckAndMerge(ctx, topicOid, targetOid, "refs/heads/topic", "refs/heads/master", true)
	require.NoError(t, err)
	require.Equal(t, KindMerge, decision.Kind)

	mg, decision2, err := m.CheckAndMerge(ctx, topicOid, targetOid, "refs/heads/topic", "refs/heads/release", true)
	require.NoError(t, err)
	assert.Equal(t, KindExistingDifferentTargetReference, decision2.Kind)
	assert.Equal(t, "refs/fusionner/topic/release", mg.MergeReference)
	assert.Equal(t, "refs/heads/release", mg.TargetParentReference)
}

func TestCheckAndMerge_Conflict(t *testing.T) {
	remotePath, remote := newTestRemote(t)
	commitFile(t, remote, "shared.txt", "base\n")

	wt, _ := remote.Worktree()
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/topic"), Create: true}))
	topicOid := commitFile(t, remote, "shared.txt", "topic change\n")

	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/master")}))
	targetOid := commitFile(t, remote, "shared.txt", "master change\n")

	repo, remoteHandle := newTestMirror(t, remotePath)
	ctx := context.Background()

	m := New(repo, remoteHandle, "fusionner-test", nil)
	require.NoError(t, m.AddNoteRefspecs())

	_, _, err := m.CheckAndMerge(ctx, topicOid, targetOid, "refs/heads/topic", "refs/heads/master", true)
	assert.Error(t, err)
}
