package gitrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature_ConfiguredIdentity(t *testing.T) {
	repo, _ := newTestRepository(t, RepositoryConfiguration{
		SignatureName:  "Release Bot",
		SignatureEmail: "release-bot@example.com",
	})

	sig := repo.Signature()
	assert.Equal(t, "Release Bot", sig.Name)
	assert.Equal(t, "release-bot@example.com", sig.Email)
	assert.False(t, sig.When.IsZero())
}

func TestSignature_FallsBackWhenUnconfigured(t *testing.T) {
	// Without a configured signature, the global Git config or the
	// built-in identity is used -- either way, a non-empty identity must
	// come back.
	repo, _ := newTestRepository(t, RepositoryConfiguration{})

	sig := repo.Signature()
	assert.NotEmpty(t, sig.Name)
	assert.NotEmpty(t, sig.Email)
	assert.False(t, sig.When.IsZero())
}
