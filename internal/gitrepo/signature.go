package gitrepo

import (
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"
)

// builtinSignatureName/Email are the last-resort identity used when neither
// the repository configuration nor the user's global Git config supplies
// one, adapted from the teacher's GetDefaultSignature.
const (
	builtinSignatureName  = "fusionner"
	builtinSignatureEmail = "fusionner@localhost"
)

// Signature resolves the author/committer identity for commits this process
// authors: repository-configured name/email, else the user's global Git
// config ("git config --global user.name/user.email"), else a built-in
// identity.
func (r *Repository) Signature() object.Signature {
	if r.cfg.SignatureName != "" && r.cfg.SignatureEmail != "" {
		return object.Signature{Name: r.cfg.SignatureName, Email: r.cfg.SignatureEmail, When: time.Now()}
	}

	if name, email, ok := r.globalSignature(); ok {
		return object.Signature{Name: name, Email: email, When: time.Now()}
	}

	logrus.Debug("No configured or global Git signature found; using built-in identity")
	return object.Signature{Name: builtinSignatureName, Email: builtinSignatureEmail, When: time.Now()}
}

func (r *Repository) globalSignature() (name, email string, ok bool) {
	cfg, err := r.raw.ConfigScoped(config.GlobalScope)
	if err != nil {
		logrus.Debugf("Failed to read global Git config: %v", err)
		return "", "", false
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return "", "", false
	}
	return cfg.User.Name, cfg.User.Email, true
}
