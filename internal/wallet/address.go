// Bitcoin address encoding.
package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// BitcoinAddress encodes a public key as a mainnet native-segwit (P2WPKH)
// address: Hash160 of the compressed key wrapped as a witness-program-v0
// bech32 string with the "bc" human-readable prefix.
func BitcoinAddress(pub *btcec.PublicKey) (string, error) {
	pubKeyHash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("encode p2wpkh address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// DecodeBitcoinAddress decodes a mainnet Bitcoin address of any supported
// format (bech32 native segwit, legacy base58check). Re-encoding the result
// of a produced P2WPKH address reproduces the identical string.
func DecodeBitcoinAddress(address string) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if !decoded.IsForNet(&chaincfg.MainNetParams) {
		return nil, fmt.Errorf("address %s is not a mainnet address", address)
	}
	return decoded, nil
}
