// Package refspec parses and formats Git refspecs of the form
// "[+]src[:dst]" and derives remote-tracking refspecs from a local ref.
package refspec

import (
	"fmt"
	"strings"
)

// Refspec is a parsed "[+]src[:dst]" string.
type Refspec struct {
	Force bool
	Src   string
	Dst   string
}

// Parse splits a leading "+" and then splits on the first ":". Absence of
// ":" yields a source-only refspec with an empty Dst.
func Parse(s string) Refspec {
	force := false
	if strings.HasPrefix(s, "+") {
		force = true
		s = s[1:]
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		return Refspec{Force: force, Src: s[:idx], Dst: s[idx+1:]}
	}
	return Refspec{Force: force, Src: s}
}

// Render round-trips a Refspec back to its string form.
func (r Refspec) Render() string {
	var b strings.Builder
	if r.Force {
		b.WriteByte('+')
	}
	b.WriteString(r.Src)
	if r.Dst != "" {
		b.WriteByte(':')
		b.WriteString(r.Dst)
	}
	return b.String()
}

// IsForce reports whether the force bit is set.
func (r Refspec) IsForce() bool {
	return r.Force
}

// Forced returns a copy of r with the force bit set to force.
func (r Refspec) Forced(force bool) Refspec {
	r.Force = force
	return r
}

// AsForced parses s, sets the force bit, and renders the result. Idempotent
// on already-forced input.
func AsForced(s string) string {
	return Parse(s).Forced(true).Render()
}

// MakeRemoteRefspec builds a remote-tracking refspec for src under
// remoteName: "refs/<rest>" becomes "[+]refs/<rest>:refs/remotes/<remoteName>/<rest>".
// It fails if src does not begin with "refs/" or remoteName is empty.
func MakeRemoteRefspec(src, remoteName string, force bool) (string, error) {
	const prefix = "refs/"
	if !strings.HasPrefix(src, prefix) {
		return "", fmt.Errorf("refspec: source %q does not begin with %q", src, prefix)
	}
	if remoteName == "" {
		return "", fmt.Errorf("refspec: remote name must not be empty")
	}

	rest := strings.TrimPrefix(src, prefix)
	dst := "refs/remotes/" + remoteName + "/" + rest

	r := Refspec{Force: force, Src: src, Dst: dst}
	return r.Render(), nil
}
