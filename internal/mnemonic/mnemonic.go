// Package mnemonic provides BIP39 seed phrase generation, validation, seed
// derivation, and the backup-verification challenge protocol.
//
// Mnemonics and seeds are ephemeral: nothing in this package writes them
// anywhere, and callers are expected to discard them after a single use.
package mnemonic

import (
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// Supported entropy strengths.
const (
	Strength12Words = 128 // 12-word phrase
	Strength24Words = 256 // 24-word phrase

	// DefaultStrength produces 12-word phrases.
	DefaultStrength = Strength12Words
)

// ErrInvalidMnemonic is returned when a phrase fails wordlist or checksum
// validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Generate produces a new BIP39 mnemonic at the given entropy strength
// (128 or 256 bits). The result is re-validated before being returned.
func Generate(strength int) (string, error) {
	if strength != Strength12Words && strength != Strength24Words {
		return "", fmt.Errorf("unsupported entropy strength: %d", strength)
	}

	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}

	if !bip39.IsMnemonicValid(phrase) {
		return "", fmt.Errorf("%w: generated phrase failed re-validation", ErrInvalidMnemonic)
	}

	return phrase, nil
}

// Validate reports whether a phrase is a valid BIP39 mnemonic (word count,
// wordlist membership, checksum). Never panics; any malformed input is
// simply invalid.
func Validate(phrase string) bool {
	return bip39.IsMnemonicValid(phrase)
}

// ToSeed derives the 64-byte binary seed from a mnemonic and optional
// passphrase using PBKDF2-HMAC-SHA512 with 2048 iterations over the
// NFKD-normalized phrase. Returns ErrInvalidMnemonic for invalid phrases.
func ToSeed(phrase, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// Zero overwrites a seed (or any key material slice) in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
