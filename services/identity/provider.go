package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/user"
)

const credentialsCollection = "credentials"

var (
	NowFunc = time.Now // mockable

	ErrPrincipalExists   = errors.New("an account with this email already exists")
	ErrPrincipalNotFound = errors.New("account not found")
)

type credentials struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Provider is the identity provider: bcrypt credentials in the document store,
// sessions in a SessionStore.
type Provider struct {
	store      core.DocumentStore
	sessions   SessionStore
	sessionTTL time.Duration

	mu        sync.RWMutex
	observers []auth.PrincipalObserver
}

var (
	_ auth.Provider  = (*Provider)(nil)
	_ user.Registrar = (*Provider)(nil)
)

func NewProvider(store core.DocumentStore, sessions SessionStore, conf *core.Config) *Provider {
	return &Provider{
		store:      store,
		sessions:   sessions,
		sessionTTL: conf.Server.JWTExpirationDelta,
	}
}

func (p *Provider) OnPrincipalChange(fn auth.PrincipalObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *Provider) notify(principal *core.Principal) {
	p.mu.RLock()
	observers := make([]auth.PrincipalObserver, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, fn := range observers {
		fn(principal)
	}
}

func (p *Provider) findByEmail(ctx context.Context, email string) (string, credentials, error) {
	docs, err := p.store.QueryDocuments(ctx, credentialsCollection, core.Where("email", email))
	if err != nil {
		return "", credentials{}, pkgerrors.Wrap(err, "querying credentials")
	}
	if len(docs) == 0 {
		return "", credentials{}, ErrPrincipalNotFound
	}
	var creds credentials
	if err = docs[0].Decode(&creds); err != nil {
		return "", credentials{}, pkgerrors.Wrap(err, "decoding credentials")
	}
	return docs[0].ID, creds, nil
}

func (p *Provider) CreatePrincipal(ctx context.Context, email, password string) (core.Principal, error) {
	email = core.CleanString(email, true /* lower */)
	_, _, err := p.findByEmail(ctx, email)
	switch {
	case err == nil:
		return core.Principal{}, ErrPrincipalExists
	case err != ErrPrincipalNotFound:
		return core.Principal{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.Principal{}, pkgerrors.Wrap(err, "hashing password")
	}
	id := uuid.NewString()
	creds := credentials{Email: email, PasswordHash: string(hash), CreatedAt: NowFunc().UTC()}
	if err = p.store.SetDocument(ctx, credentialsCollection, id, creds); err != nil {
		return core.Principal{}, pkgerrors.Wrap(err, "storing credentials")
	}
	return core.Principal{ID: id, Email: email}, nil
}

// SetPassword replaces the password of the account registered with email.
func (p *Provider) SetPassword(ctx context.Context, email, password string) error {
	id, creds, err := p.findByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return pkgerrors.Wrap(err, "hashing password")
	}
	creds.PasswordHash = string(hash)
	return p.store.SetDocument(ctx, credentialsCollection, id, creds)
}

func (p *Provider) DeletePrincipal(ctx context.Context, id string) error {
	return p.store.DeleteDocument(ctx, credentialsCollection, id)
}

// Authenticate checks email and password, then opens a session for the principal.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (core.Principal, error) {
	id, creds, err := p.findByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrPrincipalNotFound {
			return core.Principal{}, auth.ErrInvalidCredentials
		}
		return core.Principal{}, err
	}
	if err = bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return core.Principal{}, auth.ErrInvalidCredentials
	}

	sess := Session{ID: uuid.NewString(), PrincipalID: id, Email: creds.Email}
	if p.sessionTTL > 0 {
		sess.ExpiresAt = NowFunc().UTC().Add(p.sessionTTL)
	}
	if err = p.sessions.Set(ctx, sess); err != nil {
		return core.Principal{}, pkgerrors.Wrap(err, "opening session")
	}

	principal := sess.Principal()
	p.notify(&principal)
	return principal, nil
}

// CurrentPrincipal returns the principal of sessionID, or nil if the session is unknown or expired.
func (p *Provider) CurrentPrincipal(ctx context.Context, sessionID string) (*core.Principal, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(err, "getting session")
	}
	principal := sess.Principal()
	return &principal, nil
}

func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return auth.ErrNoSession
	}
	if err := p.sessions.Delete(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(err, "closing session")
	}
	p.notify(nil)
	return nil
}
