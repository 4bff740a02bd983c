package credentials

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const pkcs8BlockType = "PRIVATE KEY"

type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// RSASigner signs with RSASSA-PKCS1-v1_5 over SHA-256 (RS256).
// The key is never mutated, so a signer can be shared between goroutines.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner decodes the first PKCS8 "PRIVATE KEY" block in keyPEM.
// Any further keys in the input are ignored.
func NewRSASigner(keyPEM string) (*RSASigner, error) {
	rest := []byte(keyPEM)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, newError(KindKeyDecode, "", "no PKCS8 private key found in PEM input", nil)
		}
		if block.Type != pkcs8BlockType {
			continue
		}

		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, newError(KindKeyDecode, "", "failed to parse PKCS8 private key", err)
		}

		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, newError(KindSchemeUnavailable, "", fmt.Sprintf("RS256 requires an RSA key, got %T", parsed), nil)
		}
		return &RSASigner{key: key}, nil
	}
}

func (s *RSASigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, newError(KindSchemeUnavailable, "", "RS256 signing failed", err)
	}
	return sig, nil
}

func (s *RSASigner) Public() *rsa.PublicKey {
	return &s.key.PublicKey
}
