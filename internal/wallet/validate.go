// Address validation per chain.
package wallet

import (
	"fmt"
	"strings"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
)

// ValidateAddress reports whether address is syntactically valid for the
// given chain. Validation is format-only and never touches the network.
func ValidateAddress(c chain.Chain, address string) bool {
	return ValidateAddressReason(c, address) == nil
}

// ValidateAddressReason validates an address and returns a descriptive error
// when it is rejected, nil when it is valid.
func ValidateAddressReason(c chain.Chain, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("empty address")
	}

	params, err := c.Params()
	if err != nil {
		return err
	}

	switch params.Kind {
	case chain.AddressBech32:
		if _, err := DecodeBitcoinAddress(address); err != nil {
			return err
		}
		return nil
	case chain.AddressEVM:
		if !strings.HasPrefix(address, "0x") {
			return fmt.Errorf("address must start with 0x")
		}
		if !ValidateEVMAddress(address) {
			return fmt.Errorf("address must be 20 hex-encoded bytes")
		}
		if !IsChecksumValid(address) {
			return fmt.Errorf("address has mixed case but fails EIP-55 checksum")
		}
		return nil
	default:
		return fmt.Errorf("no validator for chain %s", c)
	}
}
