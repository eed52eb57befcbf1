package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ExternalIdentity is the subset of verified ID token claims used to sign in.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityVerifier checks a raw ID token issued by an external provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (ExternalIdentity, error)
}

// OIDCVerifier verifies ID tokens against a discovered OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuerURL and verifies tokens minted for clientID.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	if issuerURL == "" || clientID == "" {
		return nil, errors.New("oidc issuer url and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify checks signature, issuer, audience and expiry, then extracts claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (ExternalIdentity, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("verify id token: %w", err)
	}
	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return ExternalIdentity{}, fmt.Errorf("parse id token claims: %w", err)
	}
	return ExternalIdentity{
		Subject:       token.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          strings.TrimSpace(claims.Name),
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}
