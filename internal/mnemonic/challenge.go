package mnemonic

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// DefaultChallengeWords is the number of positions a backup challenge asks
// the user to reproduce.
const DefaultChallengeWords = 3

// ChallengeWord is one position/word pair drawn from a mnemonic. Index is
// 1-based, matching how phrases are presented to users for transcription.
type ChallengeWord struct {
	Index int    `json:"index"`
	Word  string `json:"word"`
}

// Answer is a user's response for one challenged position.
type Answer struct {
	Index int    `json:"index"`
	Word  string `json:"word"`
}

// ChallengeWords selects count distinct positions from the mnemonic for
// backup verification. Positions are drawn from crypto/rand.
//
// The challenge is single-use. Callers must discard it after one
// verification round-trip and issue a fresh one on retry.
func ChallengeWords(phrase string, count int) ([]ChallengeWord, error) {
	if !Validate(phrase) {
		return nil, ErrInvalidMnemonic
	}

	words := strings.Fields(phrase)
	if count <= 0 {
		count = DefaultChallengeWords
	}
	if count > len(words) {
		return nil, fmt.Errorf("challenge wants %d words but mnemonic has %d", count, len(words))
	}

	chosen := make(map[int]bool, count)
	challenge := make([]ChallengeWord, 0, count)
	for len(challenge) < count {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
		if err != nil {
			return nil, fmt.Errorf("select challenge position: %w", err)
		}
		pos := int(n.Int64())
		if chosen[pos] {
			continue
		}
		chosen[pos] = true
		challenge = append(challenge, ChallengeWord{Index: pos + 1, Word: words[pos]})
	}

	return challenge, nil
}

// VerifyChallenge checks a set of answers against the mnemonic. Matching is
// case-insensitive and whitespace-trimmed. It fails closed: an empty answer
// set, an out-of-range index, or any single mismatch returns false. There is
// no partial credit.
func VerifyChallenge(phrase string, answers []Answer) bool {
	if !Validate(phrase) || len(answers) == 0 {
		return false
	}

	words := strings.Fields(phrase)
	for _, a := range answers {
		if a.Index < 1 || a.Index > len(words) {
			return false
		}
		want := words[a.Index-1]
		got := strings.ToLower(strings.TrimSpace(a.Word))
		if got == "" || got != strings.ToLower(want) {
			return false
		}
	}
	return true
}
