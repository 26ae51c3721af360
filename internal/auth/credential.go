package auth

import (
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Mode selects the kind of credential requested from the [Broker].
type Mode int

const (
	Anonymous Mode = iota
	Authenticated
)

func (m Mode) String() string {
	switch m {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Credential is what API clients are constructed from.
type Credential struct {
	Mode   Mode
	APIKey string
	Token  *oauth2.Token

	source oauth2.TokenSource
}

// AnonymousCredential wraps an API key.
func AnonymousCredential(key string) *Credential {
	return &Credential{Mode: Anonymous, APIKey: key}
}

// AuthenticatedCredential wraps a token and the source that renews it. A nil source serves tok unchanged.
func AuthenticatedCredential(tok *oauth2.Token, source oauth2.TokenSource) *Credential {
	if source == nil {
		source = oauth2.StaticTokenSource(tok)
	}
	return &Credential{Mode: Authenticated, Token: tok, source: source}
}

// TokenSource returns the renewing token source, or nil for anonymous credentials.
func (c *Credential) TokenSource() oauth2.TokenSource {
	return c.source
}

// ClientOptions converts the credential into options for google.golang.org/api clients.
func (c *Credential) ClientOptions() []option.ClientOption {
	if c.Mode == Authenticated {
		return []option.ClientOption{option.WithTokenSource(c.source)}
	}
	return []option.ClientOption{option.WithAPIKey(c.APIKey)}
}
