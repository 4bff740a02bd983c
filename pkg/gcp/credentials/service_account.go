package credentials

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	DefaultAudience = "https://bigquery.googleapis.com/"

	// Google rejects self-signed JWTs valid for more than an hour.
	// Five seconds are shaved off for clock skew.
	tokenLifetime = 3595 * time.Second
)

var timeNow = time.Now

type ServiceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain,omitempty"`
}

func (sa *ServiceAccount) String() string {
	return fmt.Sprintf("service_account{email=%s, project=%s, key_id=%s}", sa.ClientEmail, sa.ProjectID, sa.PrivateKeyID)
}

func (sa *ServiceAccount) validate() error {
	missing := missingFields(map[string]string{
		"private_key_id": sa.PrivateKeyID,
		"private_key":    sa.PrivateKey,
		"client_email":   sa.ClientEmail,
	})
	if len(missing) > 0 {
		return fmt.Errorf("service_account is missing %v", missing)
	}
	return nil
}

// JWTClaims is the claim set of a self-signed service account token.
type JWTClaims struct {
	Issuer   string `json:"iss"`
	Subject  string `json:"sub"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

func (c JWTClaims) Valid() error {
	now := timeNow().Unix()
	if now >= c.Expiry {
		return jwt.NewValidationError("token is expired", jwt.ValidationErrorExpired)
	}
	if c.Expiry-c.IssuedAt > int64(tokenLifetime/time.Second) {
		return jwt.NewValidationError("token lifetime exceeds one hour", jwt.ValidationErrorClaimsInvalid)
	}
	return nil
}

func (sa *ServiceAccount) newToken(audience string) *jwt.Token {
	if audience == "" {
		audience = DefaultAudience
	}

	iat := timeNow().Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, JWTClaims{
		Issuer:   sa.ClientEmail,
		Subject:  sa.ClientEmail,
		Audience: audience,
		IssuedAt: iat,
		Expiry:   iat + int64(tokenLifetime/time.Second),
	})
	token.Header["kid"] = sa.PrivateKeyID
	return token
}

// BuildJWT returns the header and claim JSON exactly as they are encoded into
// the token's first two segments.
func (sa *ServiceAccount) BuildJWT(audience string) (string, string, error) {
	token := sa.newToken(audience)

	header, err := json.Marshal(token.Header)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode JWT header: %w", err)
	}
	claims, err := json.Marshal(token.Claims)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode JWT claims: %w", err)
	}
	return string(header), string(claims), nil
}

// AccessToken returns a signed JWT usable directly as a bearer token.
// No request is made to Google.
func (sa *ServiceAccount) AccessToken(audience string) (string, error) {
	signer, err := NewRSASigner(sa.PrivateKey)
	if err != nil {
		return "", err
	}
	return sa.SignedJWT(signer, audience)
}

func (sa *ServiceAccount) SignedJWT(signer Signer, audience string) (string, error) {
	signingString, err := sa.newToken(audience).SigningString()
	if err != nil {
		return "", fmt.Errorf("failed to build JWT: %w", err)
	}

	sig, err := signer.Sign([]byte(signingString))
	if err != nil {
		return "", err
	}
	return signingString + "." + jwt.EncodeSegment(sig), nil
}
