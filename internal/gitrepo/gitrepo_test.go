package gitrepo

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// newTestRepository builds a non-bare, in-memory repository (memory.Storage
// + memfs) for exercising merge/notes/signature logic without touching the
// OS filesystem -- the same technique the teacher's engine_test.go and
// session_test.go use to build real commit graphs in memory.
func newTestRepository(t *testing.T, cfg RepositoryConfiguration) (*Repository, *gogit.Repository) {
	t.Helper()
	raw, err := gogit.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return FromRaw(raw, cfg), raw
}

var testAuthor = &object.Signature{Name: "fusionner-test", Email: "test@example.com", When: time.Unix(0, 0)}

// writeAndCommit writes files (path -> content) into the worktree and
// commits them, returning the new commit's hash.
func writeAndCommit(t *testing.T, raw *gogit.Repository, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	wt, err := raw.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		f, err := wt.Filesystem.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, f.Close())
		_, err = wt.Add(name)
		require.NoError(t, err)
	}

	hash, err := wt.Commit(msg, &gogit.CommitOptions{Author: testAuthor})
	require.NoError(t, err)
	return hash
}
