package gitrepo

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/sirupsen/logrus"
)

// ResolveAuth picks one auth method from the configuration (SPEC_FULL.md §6),
// checking in this order:
//
//  1. plaintext username+password configured → http.BasicAuth;
//  2. SSH key path configured → ssh.PublicKeys, optionally passphrase
//     protected, for the configured username or "git" (nil if the key
//     cannot be loaded);
//  3. username only → the running SSH agent for that username, or
//     http.BasicAuth with an empty password if no agent is reachable.
//
// If none apply, ResolveAuth returns nil and go-git falls back to its own
// default resolution for the transport in use. There is no
// credential-helper fallback: go-git's transport layer has no equivalent
// hook (DESIGN.md, internal/gitrepo entry).
func ResolveAuth(cfg RepositoryConfiguration) transport.AuthMethod {
	switch {
	case cfg.Username != "" && cfg.Password != "":
		return &http.BasicAuth{Username: cfg.Username, Password: cfg.Password}
	case cfg.Key != "":
		auth, err := ssh.NewPublicKeysFromFile(sshUsername(cfg), cfg.Key, cfg.KeyPassphrase)
		if err != nil {
			logrus.Warnf("Failed to load SSH key from %s: %v", cfg.Key, err)
			return nil
		}
		return auth
	case cfg.Username != "":
		if agentAuth, err := ssh.NewSSHAgentAuth(cfg.Username); err == nil {
			return agentAuth
		}
		return &http.BasicAuth{Username: cfg.Username}
	default:
		return nil
	}
}

func sshUsername(cfg RepositoryConfiguration) string {
	if cfg.Username != "" {
		return cfg.Username
	}
	return "git"
}
