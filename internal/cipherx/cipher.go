// Package cipherx implements the symmetric cipher used for stored credential
// values: AES in ECB mode with NUL padding, ciphertext rendered as a hex
// string. The format is deterministic (identical plaintexts under the same key
// produce identical ciphertexts) and unauthenticated; it exists to keep
// previously written vault rows readable. New deployments that do not need
// byte compatibility should prefer an AEAD with a random nonce.
package cipherx

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"

	"github.com/dbateam/secretvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// Cipher encrypts and decrypts credential strings under a single process-wide
// key. The key is fixed at construction; a Cipher is safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// New constructs a Cipher from a raw AES key (16, 24, or 32 bytes).
func New(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &Cipher{block: block}, nil
}

// NewFromPassphrase derives a 32-byte AES key from a passphrase and salt with
// argon2id and constructs a Cipher from it.
func NewFromPassphrase(passphrase, salt []byte) (*Cipher, error) {
	key := argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
	return New(key)
}

// pad extends the plaintext with NUL bytes up to a multiple of the AES block
// size. A plaintext that legitimately ends in NUL bytes cannot survive the
// round trip; Decrypt strips all trailing NULs.
func pad(plaintext []byte) []byte {
	rem := len(plaintext) % aes.BlockSize
	if rem == 0 {
		return plaintext
	}
	padded := make([]byte, len(plaintext)+aes.BlockSize-rem)
	copy(padded, plaintext)
	return padded
}

// Encrypt encrypts plaintext and returns the ciphertext as a hex string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	src := pad([]byte(plaintext))
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += aes.BlockSize {
		c.block.Encrypt(dst[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return hex.EncodeToString(dst), nil
}

// Decrypt decodes a hex ciphertext produced by Encrypt and returns the
// original plaintext with trailing NUL padding removed. It returns
// common.ErrorDecryption if the input is not valid hex or its length is not a
// multiple of the AES block size.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	src, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}
	if len(src)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", common.ErrorDecryption, len(src))
	}
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += aes.BlockSize {
		c.block.Decrypt(dst[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return string(bytes.TrimRight(dst, "\x00")), nil
}
