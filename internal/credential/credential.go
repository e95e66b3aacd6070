// Package credential decides how a stored password is checked and when it
// must be migrated to bcrypt.
//
// Accounts created before hashing was introduced still store their password
// in plain text. Parse classifies the stored value once; Authenticate then
// compares the presented password using the matching scheme and tells the
// caller whether a legacy value was matched, which is the signal to rewrite
// it with Upgrade.
package credential

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type Scheme string

const (
	SchemePlaintext Scheme = "plaintext"
	SchemeBcrypt    Scheme = "bcrypt"
)

// bcrypt variants emitted by Go, PHP and OpenBSD respectively; x/crypto
// verifies all three.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// Credential is either a legacy plaintext secret or an upgraded bcrypt hash.
// The zero value is an empty legacy credential that matches nothing.
type Credential struct {
	scheme Scheme
	secret string
}

func Legacy(plain string) Credential {
	return Credential{scheme: SchemePlaintext, secret: plain}
}

func Upgraded(hash string) Credential {
	return Credential{scheme: SchemeBcrypt, secret: hash}
}

// Parse classifies a stored value. Anything carrying a bcrypt marker is
// treated as upgraded; everything else is legacy plaintext.
func Parse(stored string) Credential {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return Upgraded(stored)
		}
	}
	return Legacy(stored)
}

func (c Credential) Scheme() Scheme {
	if c.scheme == "" {
		return SchemePlaintext
	}
	return c.scheme
}

func (c Credential) IsLegacy() bool {
	return c.Scheme() == SchemePlaintext
}

// Encode returns the value to persist.
func (c Credential) Encode() string {
	return c.secret
}

type Outcome int

const (
	Mismatch Outcome = iota
	MatchedLegacy
	MatchedUpgraded
)

func (o Outcome) String() string {
	switch o {
	case MatchedLegacy:
		return "matched_legacy"
	case MatchedUpgraded:
		return "matched_upgraded"
	default:
		return "mismatch"
	}
}

func (o Outcome) Matched() bool {
	return o != Mismatch
}

// Authenticate has no side effects. A malformed bcrypt value is a mismatch.
func Authenticate(stored Credential, presented string) Outcome {
	if presented == "" || stored.secret == "" {
		return Mismatch
	}

	if stored.IsLegacy() {
		if subtle.ConstantTimeCompare([]byte(stored.secret), []byte(presented)) == 1 {
			return MatchedLegacy
		}
		return Mismatch
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.secret), []byte(presented)) == nil {
		return MatchedUpgraded
	}
	return Mismatch
}

var ErrEmptyPassword = errors.New("credential: empty password")

// Upgrade hashes presented with bcrypt at the given cost.
func Upgrade(presented string, cost int) (Credential, error) {
	if presented == "" {
		return Credential{}, ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(presented), cost)
	if err != nil {
		return Credential{}, err
	}
	return Upgraded(string(hash)), nil
}
