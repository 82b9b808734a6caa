// Package auth implements the connect-time credential policy: the first
// connect for a username registers it, later connects must present the same
// password hash.
//
// Clients send a digest of the password, never the password. The server
// stores a bcrypt verifier of that digest, so a leaked credential database
// does not yield values a client could replay. The client digest may be any
// length: it is folded through sha256 before bcrypt sees it, which keeps it
// under bcrypt's 72-byte input limit.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/cntfs/pkg/store"
)

// DefaultBcryptCost is the bcrypt cost used for new verifiers.
const DefaultBcryptCost = 10

// ErrInvalidCredentials is returned for an empty username or hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Outcome is the result of an authentication attempt.
type Outcome int

const (
	// OutcomeRejected means the user exists and the hash did not match.
	OutcomeRejected Outcome = iota

	// OutcomeRegistered means the user was unknown and has been created.
	OutcomeRegistered

	// OutcomeVerified means the user exists and the hash matched.
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeVerified:
		return "verified"
	default:
		return "rejected"
	}
}

// Authenticator applies the register-or-verify policy against a credential
// store. It is safe for concurrent use.
type Authenticator struct {
	store store.CredentialStore
	cost  int
	now   func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(a *Authenticator) { a.cost = cost }
}

// New returns an Authenticator backed by s.
func New(s store.CredentialStore, opts ...Option) *Authenticator {
	a := &Authenticator{store: s, cost: DefaultBcryptCost, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate registers username on first sight and verifies passwordHash
// otherwise. A concurrent registration of the same name is resolved by
// verifying against the winner. Store failures are returned as errors with
// OutcomeRejected.
func (a *Authenticator) Authenticate(ctx context.Context, username, passwordHash string) (Outcome, error) {
	if err := checkInput(username, passwordHash); err != nil {
		return OutcomeRejected, err
	}

	creds, err := a.store.GetCredentials(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		err = a.Register(ctx, username, passwordHash)
		if err == nil {
			return OutcomeRegistered, nil
		}
		if !errors.Is(err, store.ErrDuplicateUser) {
			return OutcomeRejected, err
		}
		creds, err = a.store.GetCredentials(ctx, username)
	}
	if err != nil {
		return OutcomeRejected, fmt.Errorf("lookup %q: %w", username, err)
	}

	if !verify(creds.Verifier, passwordHash) {
		return OutcomeRejected, nil
	}
	return OutcomeVerified, nil
}

// Register creates username with a verifier for passwordHash. It returns
// store.ErrDuplicateUser if the name is taken.
func (a *Authenticator) Register(ctx context.Context, username, passwordHash string) error {
	if err := checkInput(username, passwordHash); err != nil {
		return err
	}

	verifier, err := bcrypt.GenerateFromPassword(prehash(passwordHash), a.cost)
	if err != nil {
		return fmt.Errorf("hash verifier: %w", err)
	}
	return a.store.PutCredentials(ctx, &store.Credentials{
		Username:  username,
		Verifier:  string(verifier),
		CreatedAt: a.now(),
	})
}

func checkInput(username, passwordHash string) error {
	if username == "" || passwordHash == "" {
		return ErrInvalidCredentials
	}
	return nil
}

func verify(verifier, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(verifier), prehash(passwordHash)) == nil
}

// prehash maps a client digest of any length to 64 hex bytes.
func prehash(passwordHash string) []byte {
	sum := sha256.Sum256([]byte(passwordHash))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}
