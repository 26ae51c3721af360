package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/subx/internal/server"
	"github.com/desertthunder/subx/internal/shared"
	"golang.org/x/oauth2"
)

// ConsentFlow obtains a fresh token through user interaction.
type ConsentFlow interface {
	Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// authorization holds the per-attempt values of an authorization code request.
type authorization struct {
	state    string
	verifier string
}

func newAuthorization() authorization {
	return authorization{state: shared.GenerateID(), verifier: oauth2.GenerateVerifier()}
}

// url returns the consent URL. Offline access with forced approval guarantees a refresh token.
func (a authorization) url(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL(a.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(a.verifier))
}

func (a authorization) exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(a.verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %w", shared.ErrAuthentication, err)
	}
	return tok, nil
}

// LoopbackConsent serves the OAuth redirect on a local listener.
type LoopbackConsent struct {
	Host        string
	Port        int // 0 picks a free port
	OpenBrowser func(string) error
	Out         io.Writer
	Logger      *log.Logger
}

func (l *LoopbackConsent) Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	logger := l.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := l.Out
	if out == nil {
		out = io.Discard
	}

	host := l.Host
	if host == "" {
		host = "127.0.0.1"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(l.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start callback listener: %v", shared.ErrConfiguration, err)
	}

	conf := *cfg
	conf.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	authz := newAuthorization()
	handler := server.NewOAuthHandler(ctx, &conf, authz.state, oauth2.VerifierOption(authz.verifier))

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("callback server shutdown", "error", err)
		}
	}()

	consentURL := authz.url(&conf)
	fmt.Fprintf(out, "Authorize subx for the destination account:\n\n  %s\n\n", consentURL)
	logger.Debug("waiting for callback", "redirect", conf.RedirectURL)

	if l.OpenBrowser != nil {
		if err := l.OpenBrowser(consentURL); err != nil {
			logger.Warn("could not open browser, open the URL manually", "error", err)
		}
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return nil, err
		}
		return result.Token, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for consent: %w", shared.ErrAuthentication, ctx.Err())
	}
}

// ConsoleConsent prints the consent URL and reads the authorization code, or the full redirect URL,
// from In.
type ConsoleConsent struct {
	In  io.Reader
	Out io.Writer
}

func (c *ConsoleConsent) Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	out := c.Out
	if out == nil {
		out = io.Discard
	}

	conf := *cfg
	if conf.RedirectURL == "" {
		conf.RedirectURL = "http://localhost"
	}

	authz := newAuthorization()
	fmt.Fprintf(out, "Open this URL and authorize subx for the destination account:\n\n  %s\n\n", authz.url(&conf))
	fmt.Fprint(out, "Paste the code (or the address your browser was redirected to): ")

	line, err := readLine(ctx, c.In)
	if err != nil {
		return nil, err
	}

	code, err := parseAuthorizationInput(line, authz.state)
	if err != nil {
		return nil, err
	}
	return authz.exchange(ctx, &conf, code)
}

func readLine(ctx context.Context, r io.Reader) (string, error) {
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case line := <-lines:
		return strings.TrimSpace(line), nil
	case err := <-errs:
		if errors.Is(err, io.EOF) {
			return "", shared.ErrConsentDeclined
		}
		return "", fmt.Errorf("%w: reading code: %w", shared.ErrAuthentication, err)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", shared.ErrAuthentication, ctx.Err())
	}
}

// parseAuthorizationInput accepts a bare code or a redirect URL carrying code and state.
func parseAuthorizationInput(input, state string) (string, error) {
	if input == "" {
		return "", shared.ErrConsentDeclined
	}

	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: unreadable redirect address: %v", shared.ErrAuthentication, err)
	}

	q := u.Query()
	if q.Get("error") == "access_denied" {
		return "", shared.ErrConsentDeclined
	}
	if got := q.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("%w: invalid state parameter", shared.ErrAuthentication)
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: redirect address has no code", shared.ErrAuthentication)
	}
	return code, nil
}
