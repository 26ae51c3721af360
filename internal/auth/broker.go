package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/subx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// BrokerOpts configures a [Broker].
type BrokerOpts struct {
	APIKeyFile       string
	ClientSecretFile string
	Scopes           []string
	Store            TokenStore
	Consent          ConsentFlow
	Logger           *log.Logger
}

// Broker hands out credentials, refreshing or re-consenting as needed.
type Broker struct {
	apiKeyFile       string
	clientSecretFile string
	scopes           []string
	store            TokenStore
	consent          ConsentFlow
	logger           *log.Logger
}

func NewBroker(opts BrokerOpts) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Broker{
		apiKeyFile:       opts.APIKeyFile,
		clientSecretFile: opts.ClientSecretFile,
		scopes:           opts.Scopes,
		store:            opts.Store,
		consent:          opts.Consent,
		logger:           shared.WithLogger(logger, "component", "auth"),
	}
}

// Obtain returns a credential of the requested mode.
func (b *Broker) Obtain(ctx context.Context, mode Mode) (*Credential, error) {
	switch mode {
	case Anonymous:
		key, err := b.readAPIKey()
		if err != nil {
			return nil, err
		}
		return AnonymousCredential(key), nil
	case Authenticated:
		return b.authenticated(ctx, false)
	default:
		return nil, fmt.Errorf("%w: unknown credential mode %d", shared.ErrConfiguration, mode)
	}
}

// Login runs the consent flow even when a usable token is stored.
func (b *Broker) Login(ctx context.Context) (*Credential, error) {
	return b.authenticated(ctx, true)
}

// Status returns the stored token without refreshing it.
func (b *Broker) Status() (*StoredToken, error) {
	if b.store == nil {
		return nil, shared.ErrNoToken
	}
	return b.store.Load()
}

// Logout forgets the stored token.
func (b *Broker) Logout() error {
	if b.store == nil {
		return nil
	}
	return b.store.Clear()
}

// Check reads the local files the given modes depend on without contacting any endpoint.
// Token refresh and consent stay deferred to [Broker.Obtain].
func (b *Broker) Check(modes ...Mode) error {
	for _, mode := range modes {
		switch mode {
		case Anonymous:
			if _, err := b.readAPIKey(); err != nil {
				return err
			}
		case Authenticated:
			if _, err := b.OAuthConfig(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown credential mode %d", shared.ErrConfiguration, mode)
		}
	}
	return nil
}

// OAuthConfig parses the client-secret descriptor.
func (b *Broker) OAuthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(b.clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret file %s: %v", shared.ErrMissingCredentials, b.clientSecretFile, err)
	}

	cfg, err := google.ConfigFromJSON(data, b.scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret file %s: %v", shared.ErrInvalidCredentials, b.clientSecretFile, err)
	}
	return cfg, nil
}

func (b *Broker) readAPIKey() (string, error) {
	data, err := os.ReadFile(b.apiKeyFile)
	if err != nil {
		return "", fmt.Errorf("%w: api key file %s: %v", shared.ErrMissingCredentials, b.apiKeyFile, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: api key file %s is empty", shared.ErrMissingCredentials, b.apiKeyFile)
	}
	return key, nil
}

func (b *Broker) authenticated(ctx context.Context, force bool) (*Credential, error) {
	cfg, err := b.OAuthConfig()
	if err != nil {
		return nil, err
	}

	var tok *oauth2.Token
	if !force {
		tok, err = b.storedToken(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if tok == nil {
		if b.consent == nil {
			return nil, fmt.Errorf("%w: no stored token and no consent flow configured", shared.ErrAuthentication)
		}

		b.logger.Info("requesting user consent")
		tok, err = b.consent.Consent(ctx, cfg)
		if err != nil {
			if errors.Is(err, shared.ErrAuthentication) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
		}

		// consented tokens must reach the store
		if err := b.persist(tok); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrConfiguration, err)
		}
	} else {
		b.save(tok)
	}

	source := &persistingSource{
		base:   cfg.TokenSource(ctx, tok),
		last:   tok.AccessToken,
		save:   b.save,
		logger: b.logger,
	}
	return AuthenticatedCredential(tok, source), nil
}

// storedToken returns a usable token from the store, refreshing it when expired.
// A nil token with a nil error means consent is required.
func (b *Broker) storedToken(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if b.store == nil {
		return nil, nil
	}

	stored, err := b.store.Load()
	switch {
	case errors.Is(err, shared.ErrNoToken):
		b.logger.Debug("no stored token")
		return nil, nil
	case err != nil:
		b.logger.Warn("ignoring unreadable token", "error", err)
		return nil, nil
	}

	if !stored.Covers(b.scopes) {
		b.logger.Info("stored token lacks required scopes")
		return nil, nil
	}

	tok := stored.OAuth2()
	if tok.Valid() {
		b.logger.Debug("using stored token", "expiry", tok.Expiry)
		return tok, nil
	}

	if tok.RefreshToken == "" {
		b.logger.Info("stored token expired without refresh token")
		return nil, nil
	}

	b.logger.Info("refreshing expired token")
	refreshed, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	return refreshed, nil
}

func (b *Broker) persist(tok *oauth2.Token) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Save(NewStoredToken(tok, b.scopes)); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// save persists a stored or refreshed token, logging failures.
func (b *Broker) save(tok *oauth2.Token) {
	if err := b.persist(tok); err != nil {
		b.logger.Warn("failed to persist token", "error", err)
	}
}

// persistingSource saves every new token its base source mints.
type persistingSource struct {
	base   oauth2.TokenSource
	save   func(*oauth2.Token)
	logger *log.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.logger.Debug("token renewed", "expiry", tok.Expiry)
		p.last = tok.AccessToken
		p.save(tok)
	}
	return tok, nil
}
