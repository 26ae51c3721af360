package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/desertthunder/subx/internal/shared"
	"golang.org/x/oauth2"
)

// StoredToken is the persisted form of an OAuth2 token.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NewStoredToken captures tok together with the scopes it was granted for.
func NewStoredToken(tok *oauth2.Token, scopes []string) *StoredToken {
	return &StoredToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scopes:       slices.Clone(scopes),
	}
}

// OAuth2 converts back to an [oauth2.Token].
func (s *StoredToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}
}

// Covers reports whether the token was granted every scope in required.
// Tokens saved without scope information are assumed to cover them.
func (s *StoredToken) Covers(required []string) bool {
	if len(s.Scopes) == 0 {
		return true
	}
	for _, scope := range required {
		if !slices.Contains(s.Scopes, scope) {
			return false
		}
	}
	return true
}

// TokenStore persists the authenticated token between invocations.
type TokenStore interface {
	// Load returns [shared.ErrNoToken] when nothing has been saved.
	Load() (*StoredToken, error)
	Save(tok *StoredToken) error
	Clear() error
}

// FileTokenStore keeps the token as a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Load() (*StoredToken, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrNoToken
	} else if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok StoredToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", s.path)
	}
	return &tok, nil
}

func (s *FileTokenStore) Save(tok *StoredToken) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(s.path, 0o600)
}

// Clear removes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
