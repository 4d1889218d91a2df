package session

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/pkcs12"
)

const assertionLifetime = 5 * time.Minute

// certificateCredential signs client assertions (RFC 7523) with a key loaded
// from a PKCS#12 bundle.
type certificateCredential struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

func loadCertificate(path, password string) (*certificateCredential, error) {
	pfxData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file: %w", err)
	}
	return parsePfxCertificate(pfxData, password)
}

// parsePfxCertificate parses a PFX/PKCS12 file and returns the RSA key and certificate.
func parsePfxCertificate(pfxData []byte, password string) (*certificateCredential, error) {
	privateKey, cert, err := pkcs12.Decode(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pkcs12: %w", err)
	}
	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return &certificateCredential{key: rsaKey, cert: cert}, nil
}

// clientAssertion creates a signed JWT identifying clientID to tokenURL.
func (c *certificateCredential) clientAssertion(tokenURL, clientID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{tokenURL},
		Issuer:    clientID,
		Subject:   clientID,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if c.cert != nil {
		thumb := sha1.Sum(c.cert.Raw)
		token.Header["x5t"] = base64.RawURLEncoding.EncodeToString(thumb[:])
	}

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}
