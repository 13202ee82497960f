// Package chain defines the closed set of supported chains and their
// derivation parameters. All chain-specific constants are hardcoded here -
// no external configuration needed.
package chain

import (
	"errors"
	"fmt"
)

// Chain identifies a supported asset. The set is closed: every dispatch on
// Chain is an exhaustive switch so adding a chain is a compile-time change,
// not a runtime default case.
type Chain string

const (
	// Bitcoin is the Bitcoin mainnet, native-segwit receiving addresses.
	Bitcoin Chain = "BTC"

	// Ethereum is the Ethereum mainnet native asset.
	Ethereum Chain = "ETH"

	// Stablecoin is an account-based ERC-20 token held at an Ethereum
	// address. It shares Ethereum's address space: the address derived for
	// Stablecoin at a given path is byte-identical to the Ethereum address
	// at the same path. This sharing is deliberate, not incidental.
	Stablecoin Chain = "USDT"
)

// ErrUnsupportedChain is returned for any chain tag outside the closed set.
var ErrUnsupportedChain = errors.New("unsupported chain")

// AddressKind is the address encoding family for a chain.
type AddressKind string

const (
	AddressBech32 AddressKind = "bech32" // Bitcoin native segwit (bc1q...)
	AddressEVM    AddressKind = "evm"    // 0x + 40 hex, EIP-55 checksum
)

// Params holds all parameters for a chain.
type Params struct {
	Symbol   string
	Name     string
	Decimals uint8

	// BIP44 derivation
	CoinType uint32
	Purpose  uint32

	// Address encoding
	Kind      AddressKind
	Bech32HRP string // Bitcoin only

	// PriceAssetID is the spot-price feed identifier for the chain's
	// reference asset.
	PriceAssetID string

	// TokenContract is the ERC-20 contract address for token chains,
	// empty for native assets.
	TokenContract string
}

// Derivation paths keep purpose 44' for every chain, including Bitcoin,
// even though Bitcoin addresses are encoded as native segwit (a purpose
// normally paired with 84'). Already-issued donation addresses live at
// 44' paths, so the convention is kept for compatibility.
const derivationPurpose uint32 = 44

// Params returns the chain's parameters. The switch is exhaustive over the
// closed Chain set.
func (c Chain) Params() (*Params, error) {
	switch c {
	case Bitcoin:
		return &Params{
			Symbol:       "BTC",
			Name:         "Bitcoin",
			Decimals:     8,
			CoinType:     0,
			Purpose:      derivationPurpose,
			Kind:         AddressBech32,
			Bech32HRP:    "bc",
			PriceAssetID: "bitcoin",
		}, nil
	case Ethereum:
		return &Params{
			Symbol:       "ETH",
			Name:         "Ethereum",
			Decimals:     18,
			CoinType:     60,
			Purpose:      derivationPurpose,
			Kind:         AddressEVM,
			PriceAssetID: "ethereum",
		}, nil
	case Stablecoin:
		return &Params{
			Symbol:        "USDT",
			Name:          "Tether USD",
			Decimals:      6,
			CoinType:      60, // shares Ethereum's address space
			Purpose:       derivationPurpose,
			Kind:          AddressEVM,
			PriceAssetID:  "tether",
			TokenContract: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, string(c))
}

// Valid reports whether c is a member of the closed chain set.
func (c Chain) Valid() bool {
	_, err := c.Params()
	return err == nil
}

// Parse converts a symbol string into a Chain tag.
func Parse(s string) (Chain, error) {
	c := Chain(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChain, s)
	}
	return c, nil
}

// All returns every supported chain.
func All() []Chain {
	return []Chain{Bitcoin, Ethereum, Stablecoin}
}

// DerivationPath returns the BIP44 path for a receiving address:
// m/44'/<coin>'/<account>'/0/<index> (change is always 0 - the system only
// issues external receiving addresses).
func (c Chain) DerivationPath(account, index uint32) (string, error) {
	p, err := c.Params()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("m/%d'/%d'/%d'/0/%d", p.Purpose, p.CoinType, account, index), nil
}
