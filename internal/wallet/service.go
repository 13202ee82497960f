// Package wallet derives donation addresses from BIP39 mnemonics and
// validates addresses for the supported chains. Derivation is stateless: the
// mnemonic enters, an address leaves, and no key material survives the call.
package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
	"github.com/jords94/churchcryptodonations-sub000/internal/mnemonic"
	"github.com/jords94/churchcryptodonations-sub000/pkg/logging"
)

// DeriveRequest describes a single address derivation. An empty Mnemonic
// requests a freshly generated one.
type DeriveRequest struct {
	Mnemonic     string
	Passphrase   string
	Chain        chain.Chain
	Account      uint32
	AddressIndex uint32
}

// DerivedWallet is the result of a derivation. Mnemonic is populated only
// when the service generated it for this request; callers who supplied their
// own phrase already hold it and never get it echoed back.
type DerivedWallet struct {
	Chain          chain.Chain `json:"chain"`
	Address        string      `json:"address"`
	DerivationPath string      `json:"derivation_path"`
	PublicKey      string      `json:"public_key"`
	Mnemonic       string      `json:"mnemonic,omitempty"`
}

// Service derives and validates donation addresses.
type Service struct {
	log *logging.Logger
}

// NewService creates a wallet service.
func NewService(log *logging.Logger) *Service {
	return &Service{log: log.Component("wallet")}
}

// DeriveWallet derives the address at m/44'/<coin>'/<account>'/0/<index> for
// the requested chain. Key material (seed, extended keys, private key) is
// zeroized before returning. Neither the mnemonic nor any key is ever logged.
func (s *Service) DeriveWallet(req DeriveRequest) (*DerivedWallet, error) {
	if !req.Chain.Valid() {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnsupportedChain, req.Chain)
	}

	generated := false
	phrase := req.Mnemonic
	if phrase == "" {
		var err error
		phrase, err = mnemonic.Generate(mnemonic.DefaultStrength)
		if err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}
		generated = true
	}

	if !mnemonic.Validate(phrase) {
		return nil, mnemonic.ErrInvalidMnemonic
	}

	seed, err := mnemonic.ToSeed(phrase, req.Passphrase)
	if err != nil {
		return nil, err
	}
	defer mnemonic.Zero(seed)

	path, err := req.Chain.DerivationPath(req.Account, req.AddressIndex)
	if err != nil {
		return nil, err
	}

	key, err := DeriveNode(seed, path)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	params, err := req.Chain.Params()
	if err != nil {
		return nil, err
	}

	var address string
	switch params.Kind {
	case chain.AddressBech32:
		address, err = BitcoinAddress(key.PublicKey())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDerivation, err)
		}
	case chain.AddressEVM:
		address = EVMAddress(key.PublicKey())
	default:
		return nil, fmt.Errorf("%w: no encoder for chain %s", ErrDerivation, req.Chain)
	}

	// A derived address failing our own validator means the encoder and
	// validator disagree, which must never reach a donor.
	if err := ValidateAddressReason(req.Chain, address); err != nil {
		return nil, fmt.Errorf("%w: derived address failed validation: %v", ErrDerivation, err)
	}

	s.log.Info("derived donation address",
		"chain", req.Chain,
		"path", path,
		"address", address,
	)

	result := &DerivedWallet{
		Chain:          req.Chain,
		Address:        address,
		DerivationPath: path,
		PublicKey:      hex.EncodeToString(key.PublicKey().SerializeCompressed()),
	}
	if generated {
		result.Mnemonic = phrase
	}
	return result, nil
}

// BackupChallenge samples word positions from a mnemonic for donor-side
// backup verification. The phrase itself is never stored.
func (s *Service) BackupChallenge(phrase string, count int) ([]mnemonic.ChallengeWord, error) {
	return mnemonic.ChallengeWords(phrase, count)
}

// VerifyBackup checks the donor's answers against the mnemonic. All answers
// must match; a single miss fails the whole challenge.
func (s *Service) VerifyBackup(phrase string, answers []mnemonic.Answer) bool {
	ok := mnemonic.VerifyChallenge(phrase, answers)
	if !ok {
		s.log.Warn("backup verification failed", "answers", len(answers))
	}
	return ok
}
