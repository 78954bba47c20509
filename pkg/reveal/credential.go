package reveal

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// SigningCredential is an ed25519 keypair identifying a requesting party to
// the decryption service.
type SigningCredential struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewSigningCredential wraps an ed25519 private key.
func NewSigningCredential(priv ed25519.PrivateKey) (*SigningCredential, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("reveal: invalid ed25519 private key length %d", len(priv))
	}
	return &SigningCredential{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}, nil
}

// GenerateCredential creates a fresh signing credential.
func GenerateCredential() (*SigningCredential, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("reveal: generate credential: %w", err)
	}
	return NewSigningCredential(priv)
}

// PublicID returns the hex-encoded public key.
func (c *SigningCredential) PublicID() string {
	return hex.EncodeToString(c.pub)
}

// Sign signs msg with the credential's private key.
func (c *SigningCredential) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(c.priv, msg), nil
}
