package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/ui"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the consent flow even when a usable token is stored.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("starting consent flow")

	cred, err := r.broker.Login(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful")
	r.writePlain("%s\n", ui.Success("✓ Authentication successful"))
	if cred.Token != nil && !cred.Token.Expiry.IsZero() {
		r.writePlain("Access token expires: %s\n", cred.Token.Expiry.Local().Format(time.RFC1123))
	}
	return r.writePlain("Token saved to: %s\n", r.config.YouTube.TokenFile)
}

// AuthStatus reports the stored token without contacting the token endpoint.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tok, err := r.broker.Status()
	if errors.Is(err, shared.ErrNoToken) {
		r.writePlain("Authentication: %s\n", ui.Failure("✗ Not authenticated"))
		return r.writePlain("Run 'subx auth login' to authorize the destination account\n")
	} else if err != nil {
		return err
	}

	r.writePlain("Token file: %s\n", r.config.YouTube.TokenFile)
	switch {
	case tok.OAuth2().Valid():
		r.writePlain("Authentication: %s\n", ui.Success("✓ Authenticated"))
	case tok.RefreshToken != "":
		r.writePlain("Authentication: %s\n", ui.Warning("Expired, will refresh on next use"))
	default:
		r.writePlain("Authentication: %s\n", ui.Failure("✗ Expired, consent required"))
	}

	if !tok.Expiry.IsZero() {
		r.writePlain("Expires: %s\n", tok.Expiry.Local().Format(time.RFC1123))
	}
	if len(tok.Scopes) > 0 {
		r.writePlain("Scopes: %s\n", strings.Join(tok.Scopes, ", "))
	}
	if !tok.Covers(r.config.YouTube.Scopes) {
		r.writePlain("%s\n", ui.Warning("Stored token lacks configured scopes, consent will run again"))
	}
	return nil
}

// AuthLogout removes the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.broker.Logout(); err != nil {
		return err
	}
	r.logger.Info("token removed", "path", r.config.YouTube.TokenFile)
	return r.writePlain("✓ Logged out\n")
}
