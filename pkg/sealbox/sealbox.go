// Package sealbox provides authenticated encryption for persistence
// artifacts, selecting AES-GCM or ChaCha20-Poly1305 based on the
// target architecture.
package sealbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies the AEAD construction in use.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = 32

var (
	ErrBadKeySize        = errors.New("sealbox: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("sealbox: ciphertext too short")
)

// Sealer provides authenticated encryption. The nonce is generated per
// call and prepended to the ciphertext.
type Sealer interface {
	Algorithm() Algorithm
	Seal(plaintext, additionalData []byte) ([]byte, error)
	Open(ciphertext, additionalData []byte) ([]byte, error)
}

// New creates a Sealer using the preferred algorithm for the current
// architecture: AES-GCM where AES instructions are hardware accelerated
// (amd64, arm64), ChaCha20-Poly1305 otherwise.
func New(key []byte) (Sealer, error) {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return NewWithAlgorithm(key, AlgorithmAESGCM)
	default:
		return NewWithAlgorithm(key, AlgorithmChaCha20)
	}
}

// NewWithAlgorithm creates a Sealer with an explicit algorithm.
func NewWithAlgorithm(key []byte, algo Algorithm) (Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrBadKeySize
	}

	var aead cipher.AEAD
	switch algo {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
	case AlgorithmChaCha20:
		var err error
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("sealbox: unknown algorithm: " + string(algo))
	}

	return &sealer{algo: algo, aead: aead}, nil
}

type sealer struct {
	algo Algorithm
	aead cipher.AEAD
}

func (s *sealer) Algorithm() Algorithm {
	return s.algo
}

func (s *sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (s *sealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce := ciphertext[:s.aead.NonceSize()]
	return s.aead.Open(nil, nonce, ciphertext[s.aead.NonceSize():], additionalData)
}

// ZeroKey wipes key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
