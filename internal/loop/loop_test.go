package loop

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
	"github.com/lawliet89/fusionner/internal/merger"
	"github.com/lawliet89/fusionner/internal/watch"
)

var testSignature = &object.Signature{Name: "fusionner-test", Email: "test@example.com", When: time.Unix(0, 0)}

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

func TestDriver_Tick_MergesWatchedTopic(t *testing.T) {
	remotePath, remote := newTestRemote(t)
	commitFile(t, remote, "README.md", "hello")

	wt, err := remote.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/topic"), Create: true}))
	commitFile(t, remote, "feature.txt", "new feature")

	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.ReferenceName("refs/heads/master")}))

	cfg := gitrepo.RepositoryConfiguration{URI: "file://" + remotePath, CheckoutPath: t.TempDir()}
	repo, err := gitrepo.Clone(context.Background(), cfg)
	require.NoError(t, err)
	remoteHandle, err := repo.Remote("origin")
	require.NoError(t, err)

	watchRefs, err := watch.New([]string{"refs/heads/topic"}, nil)
	require.NoError(t, err)

	m := merger.New(repo, remoteHandle, "fusionner-test", nil)
	require.NoError(t, m.AddNoteRefspecs())

	driver := &Driver{
		Remote:    remoteHandle,
		Merger:    m,
		WatchRefs: watchRefs,
		TargetRef: "refs/heads/master",
		Interval:  time.Second,
	}

	require.NoError(t, driver.Tick(context.Background()))

	ref, err := remote.Reference(plumbing.ReferenceName("refs/fusionner/topic/master"), true)
	require.NoError(t, err)
	assert.NotEqual(t, plumbing.ZeroHash, ref.Hash())

	// A second tick with nothing changed must be a no-op that still
	// succeeds.
	require.NoError(t, driver.Tick(context.Background()))
}

func TestDriver_Tick_NoMatchingWatchRef(t *testing.T) {
	remotePath, remote := newTestRemote(t)
	commitFile(t, remote, "README.md", "hello")

	cfg := gitrepo.RepositoryConfiguration{URI: "file://" + remotePath, CheckoutPath: t.TempDir()}
	repo, err := gitrepo.Clone(context.Background(), cfg)
	require.NoError(t, err)
	remoteHandle, err := repo.Remote("origin")
	require.NoError(t, err)

	watchRefs, err := watch.New([]string{"refs/heads/nonexistent"}, nil)
	require.NoError(t, err)

	m := merger.New(repo, remoteHandle, "fusionner-test", nil)
	require.NoError(t, m.AddNoteRefspecs())

	driver := &Driver{
		Remote:    remoteHandle,
		Merger:    m,
		WatchRefs: watchRefs,
		TargetRef: "refs/heads/master",
	}

	err = driver.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNoWatchMatch)
}
