package services

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/mr-tron/base58"
)

// ParseWalletAddress decodes a base58 wallet address into its Ed25519 public key.
func ParseWalletAddress(address string) (ed25519.PublicKey, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidIdentityFormat
	}
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidIdentityFormat
	}
	return ed25519.PublicKey(raw), nil
}

// DecodeSignature accepts a detached signature encoded as base58 (what wallet
// adapters emit) or standard base64.
func DecodeSignature(encoded string) ([]byte, bool) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, false
	}
	if raw, err := base58.Decode(encoded); err == nil && len(raw) == ed25519.SignatureSize {
		return raw, true
	}
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(raw) == ed25519.SignatureSize {
		return raw, true
	}
	return nil, false
}

// VerifySignature reports whether signature is a valid Ed25519 signature by the
// wallet's key over exactly message. Malformed keys or signatures are invalid.
func VerifySignature(walletAddress string, message, signature []byte) bool {
	pub, err := ParseWalletAddress(walletAddress)
	if err != nil {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}
