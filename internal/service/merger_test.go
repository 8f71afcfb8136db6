package service

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ink-market-sync/internal/models"
)

const mergeChainID = int64(57073)

func sourceToken(source models.Source, address string, mutate func(*models.Token)) models.Token {
	token := models.Token{
		ChainID:  mergeChainID,
		Address:  models.NormalizeAddress(address),
		Source:   source,
		Verified: source == models.SourceSafe || source == models.SourceInkySwap,
		IsActive: true,
		Metadata: map[string]json.RawMessage{string(source): json.RawMessage(`{}`)},
	}
	if mutate != nil {
		mutate(&token)
	}
	return token
}

func TestMergeTokensFillsFieldsFirstWins(t *testing.T) {
	bs := sourceToken(models.SourceBlockscout, "0xA", func(t *models.Token) {
		t.Symbol = models.StringPtr("AAA")
	})
	safe := sourceToken(models.SourceSafe, "0xa", func(t *models.Token) {
		t.Symbol = models.StringPtr("SAFE-AAA")
		t.Name = models.StringPtr("Alpha")
		t.Decimals = models.IntPtr(18)
	})

	merged := MergeTokens([]models.Token{bs}, []models.Token{safe}, nil, nil)
	require.Len(t, merged, 1)

	// symbol already set by blockscout is never replaced
	assert.Equal(t, "AAA", *merged[0].Symbol)
	assert.Equal(t, "Alpha", *merged[0].Name)
	assert.Equal(t, 18, *merged[0].Decimals)
}

func TestMergeTokensSafeOverridesLogo(t *testing.T) {
	bs := sourceToken(models.SourceBlockscout, "0xA", func(t *models.Token) {
		t.LogoURL = models.StringPtr("https://img/bs.png")
	})
	safe := sourceToken(models.SourceSafe, "0xA", func(t *models.Token) {
		t.LogoURL = models.StringPtr("https://img/safe.png")
	})
	swap := sourceToken(models.SourceInkySwap, "0xA", func(t *models.Token) {
		t.LogoURL = models.StringPtr("https://img/swap.png")
	})

	merged := MergeTokens([]models.Token{bs}, []models.Token{safe}, []models.Token{swap}, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, "https://img/safe.png", *merged[0].LogoURL)
}

func TestMergeTokensSourcePriority(t *testing.T) {
	bs := sourceToken(models.SourceBlockscout, "0xA", nil)
	safe := sourceToken(models.SourceSafe, "0xA", nil)
	pump := sourceToken(models.SourceInkyPump, "0xA", nil)

	merged := MergeTokens([]models.Token{bs}, []models.Token{safe}, nil, []models.Token{pump})
	require.Len(t, merged, 1)
	// safe (rank 4) beats inkypump (rank 2), which merged later
	assert.Equal(t, models.SourceSafe, merged[0].Source)

	merged = MergeTokens([]models.Token{bs}, nil, nil, []models.Token{pump})
	require.Len(t, merged, 1)
	assert.Equal(t, models.SourceInkyPump, merged[0].Source)
}

func TestMergeTokensVerifiedSticky(t *testing.T) {
	safe := sourceToken(models.SourceSafe, "0xA", nil)
	pump := sourceToken(models.SourceInkyPump, "0xA", nil)

	merged := MergeTokens(nil, []models.Token{safe}, nil, []models.Token{pump})
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Verified)
}

func TestMergeTokensMetadataUnion(t *testing.T) {
	bs := sourceToken(models.SourceBlockscout, "0xA", func(t *models.Token) {
		t.Metadata = map[string]json.RawMessage{"blockscout": json.RawMessage(`{"holders":10}`)}
	})
	pump := sourceToken(models.SourceInkyPump, "0xA", func(t *models.Token) {
		t.Metadata = map[string]json.RawMessage{"inkypump": json.RawMessage(`{"curve":"x"}`)}
	})

	merged := MergeTokens([]models.Token{bs}, nil, nil, []models.Token{pump})
	require.Len(t, merged, 1)
	assert.JSONEq(t, `{"holders":10}`, string(merged[0].Metadata["blockscout"]))
	assert.JSONEq(t, `{"curve":"x"}`, string(merged[0].Metadata["inkypump"]))
}

func TestMergeTokensKeyIsCaseInsensitive(t *testing.T) {
	merged := MergeTokens(
		[]models.Token{sourceToken(models.SourceBlockscout, "0xAbC", nil)},
		[]models.Token{sourceToken(models.SourceSafe, "0xabc", nil)},
		nil, nil,
	)
	assert.Len(t, merged, 1)
}

func TestMergeTokensPreservesFirstSeenOrder(t *testing.T) {
	merged := MergeTokens(
		[]models.Token{
			sourceToken(models.SourceBlockscout, "0xb", nil),
			sourceToken(models.SourceBlockscout, "0xa", nil),
		},
		[]models.Token{sourceToken(models.SourceSafe, "0xc", nil)},
		nil, nil,
	)
	require.Len(t, merged, 3)
	assert.Equal(t, "0xb", merged[0].Address)
	assert.Equal(t, "0xa", merged[1].Address)
	assert.Equal(t, "0xc", merged[2].Address)
}

func genToken(source models.Source) gopter.Gen {
	addresses := gen.OneConstOf("0xa", "0xb", "0xc")
	symbols := gen.PtrOf(gen.OneConstOf("AAA", "BBB"))
	verified := gen.Bool()

	return gopter.CombineGens(addresses, symbols, verified).Map(func(values []interface{}) models.Token {
		token := models.Token{
			ChainID:  mergeChainID,
			Address:  values[0].(string),
			Source:   source,
			IsActive: true,
		}
		if symbol, ok := values[1].(*string); ok && symbol != nil {
			token.Symbol = symbol
		}
		token.Verified = values[2].(bool)
		return token
	})
}

func TestMergeTokensProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genInputs := gopter.CombineGens(
		gen.SliceOf(genToken(models.SourceBlockscout)),
		gen.SliceOf(genToken(models.SourceSafe)),
		gen.SliceOf(genToken(models.SourceInkySwap)),
		gen.SliceOf(genToken(models.SourceInkyPump)),
	)

	properties.Property("verified is OR-combined across sources", prop.ForAll(
		func(values []interface{}) bool {
			bs := values[0].([]models.Token)
			safe := values[1].([]models.Token)
			swap := values[2].([]models.Token)
			pump := values[3].([]models.Token)

			anyVerified := make(map[string]bool)
			for _, tokens := range [][]models.Token{bs, safe, swap, pump} {
				for _, token := range tokens {
					if token.Verified {
						anyVerified[token.Key()] = true
					}
				}
			}

			for _, merged := range MergeTokens(bs, safe, swap, pump) {
				if merged.Verified != anyVerified[merged.Key()] {
					return false
				}
			}
			return true
		},
		genInputs,
	))

	properties.Property("output has one record per key", prop.ForAll(
		func(values []interface{}) bool {
			merged := MergeTokens(
				values[0].([]models.Token),
				values[1].([]models.Token),
				values[2].([]models.Token),
				values[3].([]models.Token),
			)
			seen := make(map[string]struct{}, len(merged))
			for _, token := range merged {
				if _, dup := seen[token.Key()]; dup {
					return false
				}
				seen[token.Key()] = struct{}{}
			}
			return true
		},
		genInputs,
	))

	properties.Property("merging the merge output back in is a fixed point for symbol and verified", prop.ForAll(
		func(values []interface{}) bool {
			first := MergeTokens(
				values[0].([]models.Token),
				values[1].([]models.Token),
				values[2].([]models.Token),
				values[3].([]models.Token),
			)
			second := MergeTokens(first, nil, nil, nil)
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i].Verified != second[i].Verified {
					return false
				}
				a, b := first[i].Symbol, second[i].Symbol
				if (a == nil) != (b == nil) || (a != nil && *a != *b) {
					return false
				}
			}
			return true
		},
		genInputs,
	))

	properties.TestingRun(t)
}
