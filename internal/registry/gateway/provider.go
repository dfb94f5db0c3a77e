package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"visitid/internal/registry/models"
)

// Provider errors are infrastructure facts; the gateway translates them into
// coded domain errors.
var (
	// ErrNoIdentity means the provider has no active identity to sign with.
	ErrNoIdentity = errors.New("no active identity")
	// ErrSigningCancelled means the caller aborted before submission.
	ErrSigningCancelled = errors.New("signing cancelled")
)

// SignedSubmission is a registration request bound to an owner identity by a
// signature. The ledger trusts the gateway's session layer; the signature
// exists so confirmations can be attributed to the submitting identity.
type SignedSubmission struct {
	Owner  models.OwnerAddress
	Fields models.RegistrationFields
	Token  string
}

// Provider is the external identity-and-signing capability. It supplies a
// caller identity, signs write submissions (reporting cancellation), and
// notifies on identity changes.
type Provider interface {
	ActiveIdentity(ctx context.Context) (models.OwnerAddress, error)
	Identities(ctx context.Context) ([]models.OwnerAddress, error)
	SignSubmission(ctx context.Context, owner models.OwnerAddress, fields models.RegistrationFields) (SignedSubmission, error)
	// Subscribe registers an identity-change callback and returns an
	// unsubscribe function.
	Subscribe(fn func(models.OwnerAddress)) func()
}

// KeystoreProvider signs submissions with a locally held HMAC key. It stands
// in for an external wallet: identities are plain addresses, the active one
// is switchable, and subscribers hear about switches.
type KeystoreProvider struct {
	mu          sync.RWMutex
	key         []byte
	identities  []models.OwnerAddress
	active      int
	subscribers map[int]func(models.OwnerAddress)
	nextSub     int
}

// NewKeystoreProvider builds a provider over the given identities. An empty
// identity list models "no signing capability installed".
func NewKeystoreProvider(key []byte, identities ...models.OwnerAddress) *KeystoreProvider {
	return &KeystoreProvider{
		key:         key,
		identities:  identities,
		subscribers: make(map[int]func(models.OwnerAddress)),
	}
}

func (p *KeystoreProvider) ActiveIdentity(_ context.Context) (models.OwnerAddress, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.identities) == 0 {
		return "", ErrNoIdentity
	}
	return p.identities[p.active], nil
}

func (p *KeystoreProvider) Identities(_ context.Context) ([]models.OwnerAddress, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.OwnerAddress, len(p.identities))
	copy(out, p.identities)
	return out, nil
}

// SignSubmission issues a signed token over the submission payload. A context
// cancelled before signing completes reports ErrSigningCancelled and leaves
// nothing submitted.
func (p *KeystoreProvider) SignSubmission(ctx context.Context, owner models.OwnerAddress, fields models.RegistrationFields) (SignedSubmission, error) {
	if err := ctx.Err(); err != nil {
		return SignedSubmission{}, ErrSigningCancelled
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.identities) == 0 {
		return SignedSubmission{}, ErrNoIdentity
	}

	claims := jwt.MapClaims{
		"sub":  owner.String(),
		"name": fields.Name,
		"doc":  fields.DocumentNumber,
		"iat":  time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return SignedSubmission{}, err
	}

	return SignedSubmission{Owner: owner, Fields: fields, Token: token}, nil
}

// SetActive switches the active identity and notifies subscribers, mirroring
// a wallet account change.
func (p *KeystoreProvider) SetActive(owner models.OwnerAddress) bool {
	p.mu.Lock()
	idx := -1
	for i, id := range p.identities {
		if id == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	p.active = idx
	subs := make([]func(models.OwnerAddress), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(owner)
	}
	return true
}

func (p *KeystoreProvider) Subscribe(fn func(models.OwnerAddress)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}
