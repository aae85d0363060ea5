package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NullAddress is the token id used for a chain's native coin
const NullAddress = "0x0000000000000000000000000000000000000000"

// TokenOwner is one (token, owner) pair to sum
type TokenOwner struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
}

// MarshalJSON encodes the pair as a two element array: ["token", "owner"]
func (p TokenOwner) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Token, p.Owner})
}

// UnmarshalJSON accepts both the array form and the object form
func (p *TokenOwner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("token/owner pair must have 2 elements, got %d", len(pair))
		}
		p.Token, p.Owner = pair[0], pair[1]
		return nil
	}

	type plain TokenOwner
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = TokenOwner(v)
	return nil
}

// LPPosition asks an adapter to decompose a held LP share token into its reserves.
// HintAssetID is one of the pool's reserve assets, used by the pool-specific valuation rule.
type LPPosition struct {
	LPAssetID   string `json:"lpAssetId" yaml:"lpAssetId"`
	HintAssetID string `json:"hintAssetId,omitempty" yaml:"hintAssetId,omitempty"`
}

// SumRequest describes one aggregation for one chain
type SumRequest struct {
	Chain             string       `json:"chain"`
	Owner             string       `json:"owner,omitempty"`
	Owners            []string     `json:"owners,omitempty"`
	Token             string       `json:"token,omitempty"`
	Tokens            []string     `json:"tokens,omitempty"`
	TokensAndOwners   []TokenOwner `json:"tokensAndOwners,omitempty"`
	BlacklistedTokens []string     `json:"blacklistedTokens,omitempty"`
	// Block is a block height or a chain-specific tag such as "latest". Empty means latest.
	Block       string       `json:"block,omitempty"`
	Balances    Balances     `json:"balances,omitempty"`
	LPPositions []LPPosition `json:"lpPositions,omitempty"`
}

// BlockHeight returns the numeric block height when Block is one
func (r *SumRequest) BlockHeight() (uint64, bool) {
	if r.Block == "" {
		return 0, false
	}
	h, err := strconv.ParseUint(strings.TrimSpace(r.Block), 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// AllOwners returns Owners with the single Owner shorthand folded in
func (r *SumRequest) AllOwners() []string {
	if r.Owner == "" {
		return r.Owners
	}
	return append([]string{r.Owner}, r.Owners...)
}

// AllTokens returns Tokens with the single Token shorthand folded in
func (r *SumRequest) AllTokens() []string {
	if r.Token == "" {
		return r.Tokens
	}
	return append([]string{r.Token}, r.Tokens...)
}

// Validate checks the fields every adapter depends on
func (r *SumRequest) Validate() error {
	if strings.TrimSpace(r.Chain) == "" {
		return ErrMissingChain
	}
	for i, lp := range r.LPPositions {
		if lp.LPAssetID == "" {
			return fmt.Errorf("%w: lpPositions[%d] has no lpAssetId", ErrInvalidRequest, i)
		}
	}
	return nil
}

// AggregateResponse is the HTTP response body for one aggregation
type AggregateResponse struct {
	Chain    string   `json:"chain"`
	Block    string   `json:"block,omitempty"`
	Balances Balances `json:"balances"`
}
