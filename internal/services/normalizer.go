package services

import (
	"strings"

	"balance-aggregator/internal/models"
)

// pairSeparator joins a token and an owner into one opaque string so a pair list
// can be normalized and deduplicated with the same rules as a flat id list.
const pairSeparator = "¤"

// caseSensitiveChains keep identifiers verbatim; every other chain is lower-cased.
var caseSensitiveChains = map[string]bool{
	"solana":   true,
	"tron":     true,
	"algorand": true,
	"bitcoin":  true,
	"litecoin": true,
	"cardano":  true,
	"tezos":    true,
	"polkadot": true,
	"eos":      true,
	"stellar":  true,
	"ton":      true,
	"ripple":   true,
	"bep2":     true,
	"elrond":   true,
}

// IsCaseSensitive reports whether identifiers on chain are kept verbatim
func IsCaseSensitive(chain string) bool {
	return caseSensitiveChains[strings.ToLower(chain)]
}

// canonical returns the canonical form of one identifier on chain
func canonical(chain, id string) string {
	id = strings.TrimSpace(id)
	if IsCaseSensitive(chain) {
		return id
	}
	return strings.ToLower(id)
}

// NormalizeAddresses canonicalizes, drops empty and deduplicates ids, keeping first-seen order.
// It is idempotent: NormalizeAddresses(c, NormalizeAddresses(c, x)) == NormalizeAddresses(c, x).
func NormalizeAddresses(chain string, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = canonical(chain, id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NormalizeTokenOwners canonicalizes and deduplicates a pair list.
// Each pair is compared as one composite key so the same pair is never summed twice.
func NormalizeTokenOwners(chain string, pairs []models.TokenOwner) []models.TokenOwner {
	joined := make([]string, 0, len(pairs))
	for _, p := range pairs {
		token, owner := canonical(chain, p.Token), canonical(chain, p.Owner)
		if token == "" || owner == "" {
			continue
		}
		joined = append(joined, token+pairSeparator+owner)
	}

	keys := NormalizeAddresses(chain, joined)
	out := make([]models.TokenOwner, 0, len(keys))
	for _, k := range keys {
		token, owner, _ := strings.Cut(k, pairSeparator)
		out = append(out, models.TokenOwner{Token: token, Owner: owner})
	}
	return out
}

// ExpandTokenOwners builds the tokens × owners cross product, tokens outermost
func ExpandTokenOwners(tokens, owners []string) []models.TokenOwner {
	out := make([]models.TokenOwner, 0, len(tokens)*len(owners))
	for _, t := range tokens {
		for _, o := range owners {
			out = append(out, models.TokenOwner{Token: t, Owner: o})
		}
	}
	return out
}

// filterOut returns ids without any member of exclude
func filterOut(ids, exclude []string) []string {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// toSet builds a lookup set from ids
func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
