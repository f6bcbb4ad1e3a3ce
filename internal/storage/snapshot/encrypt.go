package snapshot

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/slatekv/slatekv-go/pkg/sealbox"
)

// Encryption errors.
var (
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrInvalidSalt       = errors.New("snapshot: invalid salt length")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation. The salt
	// is generated per snapshot and persisted in the file header, so
	// the same key can be re-derived for decryption.
	SaltLength = 16

	// Argon2id parameters for key derivation from a passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("snapshot: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKeyFromPassphrase derives a master key from a passphrase and
// salt using Argon2id.
func DeriveKeyFromPassphrase(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != SaltLength {
		return nil, ErrInvalidSalt
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, sealbox.KeySize), nil
}

// DeriveSubkey derives a purpose-bound subkey from a master key using
// HKDF, so the snapshot and WAL never share a key even when derived
// from the same passphrase.
func DeriveSubkey(masterKey []byte, purpose string) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(purpose))
	key := make([]byte, sealbox.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// SealerForSalt derives the snapshot sealer for a passphrase and a
// persisted salt. algorithm selects the AEAD; empty picks the
// platform default.
func SealerForSalt(passphrase, salt []byte, algorithm sealbox.Algorithm) (sealbox.Sealer, error) {
	master, err := DeriveKeyFromPassphrase(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer sealbox.ZeroKey(master)

	key, err := DeriveSubkey(master, "snapshot")
	if err != nil {
		return nil, err
	}
	defer sealbox.ZeroKey(key)

	if algorithm == "" {
		return sealbox.New(key)
	}
	return sealbox.NewWithAlgorithm(key, algorithm)
}
