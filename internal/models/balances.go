package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Balances is the ledger produced by one aggregation: token id to amount in raw token units.
// Amounts are only ever summed into an existing entry, never overwritten.
type Balances map[string]decimal.Decimal

// NewBalances creates an empty ledger
func NewBalances() Balances {
	return make(Balances)
}

// Add sums amount into the entry for token
func (b Balances) Add(token string, amount decimal.Decimal) {
	if current, ok := b[token]; ok {
		b[token] = current.Add(amount)
		return
	}
	b[token] = amount
}

// AddString parses an integer or decimal string amount and sums it into the entry for token
func (b Balances) AddString(token, amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("%w: %q for token %s", ErrInvalidAmount, amount, token)
	}
	b.Add(token, d)
	return nil
}

// Merge sums every entry of other into b
func (b Balances) Merge(other Balances) {
	for token, amount := range other {
		b.Add(token, amount)
	}
}

// Get returns the amount held for token, zero if absent
func (b Balances) Get(token string) decimal.Decimal {
	return b[token]
}

// Has reports whether the ledger has an entry for token
func (b Balances) Has(token string) bool {
	_, ok := b[token]
	return ok
}

// Delete removes the entry for token
func (b Balances) Delete(token string) {
	delete(b, token)
}

// Clone returns an independent copy of the ledger
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for token, amount := range b {
		out[token] = amount
	}
	return out
}

// Tokens returns the token ids in the ledger in lexical order
func (b Balances) Tokens() []string {
	tokens := make([]string, 0, len(b))
	for token := range b {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Equal reports whether both ledgers hold the same amounts for the same tokens
func (b Balances) Equal(other Balances) bool {
	if len(b) != len(other) {
		return false
	}
	for token, amount := range b {
		o, ok := other[token]
		if !ok || !o.Equal(amount) {
			return false
		}
	}
	return true
}
