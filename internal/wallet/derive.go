// Package wallet derives receiving addresses from BIP39 mnemonics using
// BIP32/BIP44 hierarchical derivation over secp256k1.
//
// Private key material never leaves this package: every derivation is
// single-call-scoped and the key buffers are zeroized before return.
package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// ErrDerivation is returned when a node along a derivation path cannot
// yield a key.
var ErrDerivation = errors.New("derivation failed")

// KeyPair holds the key material at one derivation node. The private scalar
// is owned by the pair and is destroyed by Zero; it is never serialized and
// never logged.
type KeyPair struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey
}

// PublicKey returns the node's public key.
func (kp *KeyPair) PublicKey() *btcec.PublicKey {
	return kp.pub
}

// Zero destroys the private scalar. The pair's public key stays usable.
func (kp *KeyPair) Zero() {
	if kp.priv != nil {
		kp.priv.Zero()
		kp.priv = nil
	}
}

// DeriveNode walks a BIP32 path from a 64-byte seed, applying hardened
// derivation for apostrophe-suffixed segments and normal derivation
// otherwise. Intermediate extended keys are zeroized as the walk proceeds.
func DeriveNode(seed []byte, path string) (*KeyPair, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	// Network params only affect xprv/xpub serialization, which is never
	// used here; derivation itself is network-agnostic.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrDerivation, err)
	}

	for i, step := range steps {
		next, derr := key.Derive(step)
		key.Zero()
		if derr != nil {
			return nil, fmt.Errorf("%w: segment %d of %s: %v", ErrDerivation, i+1, path, derr)
		}
		key = next
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		key.Zero()
		return nil, fmt.Errorf("%w: private key at %s: %v", ErrDerivation, path, err)
	}
	pub, err := key.ECPubKey()
	key.Zero()
	if err != nil {
		priv.Zero()
		return nil, fmt.Errorf("%w: public key at %s: %v", ErrDerivation, path, err)
	}

	return &KeyPair{priv: priv, pub: pub}, nil
}

// parsePath parses "m/44'/0'/0'/0/0" into derivation steps. Hardened
// segments carry the 0x80000000 offset.
func parsePath(path string) ([]uint32, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != "m" {
		return nil, fmt.Errorf("%w: malformed path %q", ErrDerivation, path)
	}

	steps := make([]uint32, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		hardened := strings.HasSuffix(seg, "'")
		seg = strings.TrimSuffix(seg, "'")
		n, err := strconv.ParseUint(seg, 10, 32)
		if err != nil || n >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: malformed path segment %q in %q", ErrDerivation, seg, path)
		}
		step := uint32(n)
		if hardened {
			step += hdkeychain.HardenedKeyStart
		}
		steps = append(steps, step)
	}
	return steps, nil
}
