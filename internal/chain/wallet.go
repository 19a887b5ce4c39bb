package chain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Wallet operations are purely local: key material never leaves the
// process unencrypted. The sealed blob doubles as the user's identity on
// the chain, so losing the secret orphans the on-chain account.

// CreateWallet generates fresh key material and seals it with the user's
// secret. The returned blob is stored as User.Account.
func (c *Client) CreateWallet(secret string) (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("wallet keygen: %w", err)
	}
	sealed, err := seal(key, secret)
	if err != nil {
		return "", fmt.Errorf("wallet seal: %w", err)
	}
	return sealed, nil
}

// UnlockWallet recovers the raw key material from a sealed account blob.
func (c *Client) UnlockWallet(account, secret string) ([]byte, error) {
	key, err := open(account, secret)
	if err != nil {
		return nil, fmt.Errorf("wallet unlock: %w", err)
	}
	return key, nil
}

func secretKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func seal(plaintext []byte, secret string) (string, error) {
	block, err := aes.NewCipher(secretKey(secret))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(blob, secret string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(secretKey(secret))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed account too short")
	}
	return gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
}
