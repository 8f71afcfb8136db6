// Package service implements the sync jobs: token registry merging,
// market data refresh, price history backfill, and wallet name
// resolution.
package service

import (
	"encoding/json"

	"github.com/ink-market-sync/internal/models"
)

// MergeTokens reconciles the four source collections into one canonical
// record per (chain_id, address). Sources are merged in a fixed order;
// the multisig registry may override an already-set logo, the others
// only fill gaps. Output preserves first-seen order.
func MergeTokens(blockscout, safe, inkyswap, inkypump []models.Token) []models.Token {
	merged := make(map[string]models.Token)
	var order []string

	apply := func(tokens []models.Token, preferLogo bool) {
		for _, incoming := range tokens {
			if incoming.Address == "" {
				continue
			}
			key := models.TokenKey(incoming.ChainID, incoming.Address)
			existing, ok := merged[key]
			if !ok {
				merged[key] = incoming
				order = append(order, key)
				continue
			}
			merged[key] = mergeToken(existing, incoming, preferLogo)
		}
	}

	apply(blockscout, false)
	apply(safe, true)
	apply(inkyswap, false)
	apply(inkypump, false)

	result := make([]models.Token, 0, len(order))
	for _, key := range order {
		result = append(result, merged[key])
	}
	return result
}

// mergeToken folds one incoming record into the accumulator. Symbol,
// name and decimals keep the first non-null value; verified is sticky;
// the source field follows the higher-priority source.
func mergeToken(existing, incoming models.Token, preferLogo bool) models.Token {
	merged := existing

	if merged.Symbol == nil {
		merged.Symbol = incoming.Symbol
	}
	if merged.Name == nil {
		merged.Name = incoming.Name
	}
	if merged.Decimals == nil {
		merged.Decimals = incoming.Decimals
	}

	if preferLogo && incoming.LogoURL != nil {
		merged.LogoURL = incoming.LogoURL
	} else if merged.LogoURL == nil && incoming.LogoURL != nil {
		merged.LogoURL = incoming.LogoURL
	}

	merged.Verified = merged.Verified || incoming.Verified

	if incoming.Source.Priority() >= merged.Source.Priority() {
		merged.Source = incoming.Source
	}

	merged.Metadata = unionMetadata(existing.Metadata, incoming.Metadata)
	return merged
}

// unionMetadata shallow-merges the per-source raw payloads, incoming
// keys winning. The result is always a fresh map.
func unionMetadata(existing, incoming map[string]json.RawMessage) map[string]json.RawMessage {
	if existing == nil && incoming == nil {
		return nil
	}
	union := make(map[string]json.RawMessage, len(existing)+len(incoming))
	for key, value := range existing {
		union[key] = value
	}
	for key, value := range incoming {
		union[key] = value
	}
	return union
}
