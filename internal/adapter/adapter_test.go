package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/httpclient"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
	"github.com/ink-market-sync/internal/retry"
)

const testChainID = int64(57073)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*httpclient.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := &retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return httpclient.NewWithHTTPClient(server.Client(), cfg), server
}

func testLogger() *logging.Logger {
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	logger.SetOutput(io.Discard)
	return logger
}

func TestBlockscoutFetchTokensFollowsCursor(t *testing.T) {
	var queries []string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		if len(queries) == 1 {
			io.WriteString(w, `{
				"items": [{"address_hash":"0xAAA0000000000000000000000000000000000001","symbol":"AAA","name":"Alpha","decimals":"18","icon_url":"https://img/a.png"}],
				"next_page_params": {"contract_address_hash":"0xaaa","holder_count":1234567}
			}`)
			return
		}
		io.WriteString(w, `{
			"items": [{"address_hash":"0xBBB0000000000000000000000000000000000002","symbol":"BBB","name":"Beta","decimals":"6"}],
			"next_page_params": null
		}`)
	})

	bs := NewBlockscoutClient(server.URL, "key-1", 20, testChainID, client)
	tokens, err := bs.FetchTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "0xaaa0000000000000000000000000000000000001", tokens[0].Address)
	assert.Equal(t, "AAA", *tokens[0].Symbol)
	assert.Equal(t, 18, *tokens[0].Decimals)
	assert.False(t, tokens[0].Verified)
	assert.Equal(t, models.SourceBlockscout, tokens[0].Source)
	assert.Contains(t, tokens[0].Metadata, "blockscout")

	assert.Nil(t, tokens[1].LogoURL)
	assert.Equal(t, 6, *tokens[1].Decimals)

	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "apikey=key-1")
	assert.Contains(t, queries[1], "contract_address_hash=0xaaa")
	assert.Contains(t, queries[1], "holder_count=1234567")
}

func TestBlockscoutFetchTokensRespectsPageCap(t *testing.T) {
	pages := 0
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"items":[],"next_page_params":{"page":2}}`)
	})

	bs := NewBlockscoutClient(server.URL, "", 3, testChainID, client)
	_, err := bs.FetchTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestBlockscoutLookupAddressName(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ens_domain_name":"@Alice.Ink"}`)
	})

	bs := NewBlockscoutClient(server.URL, "", 1, testChainID, client)
	name, err := bs.LookupAddressName(context.Background(), "0xABC0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "alice.ink", name)
}

func TestBlockscoutDisabledWithoutBaseURL(t *testing.T) {
	bs := NewBlockscoutClient("", "", 1, testChainID, nil)
	_, err := bs.FetchTokens(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestSafeFetchTokensStopsOnShortPage(t *testing.T) {
	var offsets []string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		if len(offsets) == 1 {
			io.WriteString(w, `{"next":"more","results":[
				{"address":"0xAAA0000000000000000000000000000000000001","symbol":"AAA","name":"Alpha","decimals":18,"logoUri":"https://img/safe-a.png"},
				{"address":"0xBBB0000000000000000000000000000000000002","symbol":"BBB","name":"Beta","decimals":6}
			]}`)
			return
		}
		io.WriteString(w, `{"next":"","results":[
			{"address":"0xCCC0000000000000000000000000000000000003","symbol":"CCC","name":"Gamma","decimals":8}
		]}`)
	})

	safe := NewSafeClient(server.URL, 2, 10, testChainID, client)
	tokens, err := safe.FetchTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, []string{"0", "2"}, offsets)
	assert.True(t, tokens[0].Verified)
	assert.Equal(t, models.SourceSafe, tokens[0].Source)
	assert.Equal(t, "https://img/safe-a.png", *tokens[0].LogoURL)
}

func TestInkySwapFetchTokensFiltersChain(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"tokens":[
			{"chainId":57073,"address":"0xAAA0000000000000000000000000000000000001","symbol":"AAA","decimals":18,"logoURI":"https://img/a.png"},
			{"chainId":1,"address":"0xBBB0000000000000000000000000000000000002","symbol":"BBB","decimals":18}
		]}`)
	})

	swap := NewInkySwapClient(server.URL, testChainID, client)
	tokens, err := swap.FetchTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "0xaaa0000000000000000000000000000000000001", tokens[0].Address)
	assert.True(t, tokens[0].Verified)
	assert.Equal(t, models.SourceInkySwap, tokens[0].Source)
}

func TestInkySwapFetchPairsAcceptsStringReserves(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"token0":{"address":"0xAAA","symbol":"usdc","decimals":6},
			 "token1":{"address":"0xBBB","symbol":"wink","decimals":18},
			 "reserve0":"1000000000","reserve1":2e21,"volume_24h":"1234.5"},
			{"token0":{"address":"","symbol":"x","decimals":18},
			 "token1":{"address":"0xCCC","symbol":"y","decimals":18},
			 "reserve0":1,"reserve1":1,"volume_24h":0}
		]`)
	})

	swap := NewInkySwapClient(server.URL, testChainID, client)
	pairs, err := swap.FetchPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	assert.Equal(t, "0xaaa", pairs[0].Token0.Address)
	assert.Equal(t, "USDC", pairs[0].Token0.Symbol)
	assert.Equal(t, float64(1000000000), pairs[0].Reserve0)
	assert.Equal(t, 2e21, pairs[0].Reserve1)
	assert.Equal(t, 1234.5, pairs[0].Volume24hUSD)
}

func TestInkyPumpBatchSkipsRateLimitedBatch(t *testing.T) {
	var calls int
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req inkyPumpBatchRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.IncludeMetrics)
		assert.False(t, req.IncludeHolders)

		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":"slow down"}`)
			return
		}
		io.WriteString(w, `{"data":{"tokens":[
			{"address":"0xAAA0000000000000000000000000000000000001","ticker":"AAA","name":"Alpha","image_url":"https://img/pump-a.png"}
		]}}`)
	})

	pump := NewInkyPumpClient(server.URL, 2, 10, time.Millisecond, testChainID, client, testLogger())
	addresses := []string{"0xa1", "0xa2", "0xa3"}
	tokens, err := pump.FetchTokensBatch(context.Background(), addresses)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, tokens, 1)
	assert.Equal(t, "AAA", *tokens[0].Symbol)
	assert.Equal(t, "https://img/pump-a.png", *tokens[0].LogoURL)
	assert.False(t, tokens[0].Verified)
	assert.Equal(t, models.SourceInkyPump, tokens[0].Source)
}

func TestInkyPumpBatchCapsBatchCount(t *testing.T) {
	var calls int
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"tokens":[]}`)
	})

	pump := NewInkyPumpClient(server.URL, 1, 2, time.Millisecond, testChainID, client, testLogger())
	_, err := pump.FetchTokensBatch(context.Background(), []string{"0xa1", "0xa2", "0xa3", "0xa4"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCMCQuotesMatchesByPlatformAddress(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-CMC_PRO_API_KEY"))
		assert.Equal(t, "AAA,BBB", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{
			"AAA":[
				{"platform":{"token_address":"0xWRONG"},"quote":{"USD":{"price":5}}},
				{"platform":{"token_address":"0xAAA0000000000000000000000000000000000001"},"quote":{"USD":{"price":2.5,"market_cap":1000,"volume_24h":10,"percent_change_24h":-1.5,"last_updated":"2026-08-27T00:00:00Z"}}}
			],
			"BBB":{"quote":{"USD":{"price":7}}}
		}}`)
	})

	cmc := NewCMCClient(server.URL, "secret", client)
	quotes, err := cmc.Quotes(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)

	match := MatchQuote(quotes["AAA"], "0xAAA0000000000000000000000000000000000001")
	require.NotNil(t, match)
	assert.Equal(t, 2.5, *match.Quote.USD.Price)
	assert.Equal(t, float64(1000), *match.Quote.USD.MarketCap)

	// single-object entries and positional fallback
	fallback := MatchQuote(quotes["BBB"], "0xdddd")
	require.NotNil(t, fallback)
	assert.Equal(t, float64(7), *fallback.Quote.USD.Price)

	assert.Nil(t, MatchQuote(nil, "0xaaaa"))
}

func TestCMCOHLCVParsesSymbolKeyedLayout(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hourly", r.URL.Query().Get("interval"))
		assert.Equal(t, "168", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"AAA":{"quotes":[
			{"time_close":"2026-08-27T01:00:00Z","quote":{"USD":{"open":1,"high":2,"low":0.5,"close":1.5,"volume":100}}},
			{"time_open":"2026-08-27T02:00:00Z","USD":{"close":1.6}}
		]}}}`)
	})

	cmc := NewCMCClient(server.URL, "secret", client)
	candles, err := cmc.OHLCV(context.Background(), "AAA", 168)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "2026-08-27T01:00:00Z", candles[0].Timestamp)
	assert.Equal(t, 1.5, *candles[0].Close)
	assert.Equal(t, "2026-08-27T02:00:00Z", candles[1].Timestamp)
	assert.Equal(t, 1.6, *candles[1].Close)
	assert.Nil(t, candles[1].Open)
}

func TestCMCEntitlementErrorSurfaces(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"status":{"error_message":"Your plan does not support this endpoint"}}`)
	})

	cmc := NewCMCClient(server.URL, "secret", client)
	_, err := cmc.OHLCV(context.Background(), "AAA", 168)
	require.Error(t, err)
	assert.True(t, errors.IsEntitlementDenied(err))
}

func TestCMCWithoutKeyFailsValidation(t *testing.T) {
	cmc := NewCMCClient("https://example.invalid", "", nil)
	assert.False(t, cmc.HasKey())
	_, err := cmc.Quotes(context.Background(), []string{"AAA"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestExtractListShapes(t *testing.T) {
	assert.Len(t, extractList(json.RawMessage(`[{"a":1},{"a":2}]`), "tokens"), 2)
	assert.Len(t, extractList(json.RawMessage(`{"tokens":[{"a":1}]}`), "tokens"), 1)
	assert.Len(t, extractList(json.RawMessage(`{"data":{"tokens":[{"a":1}]}}`), "tokens"), 1)
	assert.Nil(t, extractList(json.RawMessage(`{"other":true}`), "tokens"))
}
