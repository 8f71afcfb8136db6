// Package storage provides the persistence gateway and the typed
// repositories the sync jobs read and write through. The gateway speaks
// PostgREST: filtered selects, upserts with merge-on-conflict semantics,
// and RPC calls for server-side aggregates. Gateway failures are not
// batch-tolerable; they propagate and fail the job.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ink-market-sync/internal/httpclient"
)

// Gateway is a PostgREST client authenticated with a service key
type Gateway struct {
	baseURL    string
	serviceKey string
	client     *httpclient.Client
}

// defaultChunkSize bounds rows per upsert request
const defaultChunkSize = 500

// NewGateway creates a gateway for the given PostgREST endpoint
func NewGateway(baseURL, serviceKey string, client *httpclient.Client) *Gateway {
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     client,
	}
}

func (g *Gateway) headers(extra map[string]string) map[string]string {
	headers := map[string]string{
		"apikey":        g.serviceKey,
		"Authorization": "Bearer " + g.serviceKey,
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

// Select reads rows from a table with PostgREST filter parameters,
// decoding the JSON array response into out
func (g *Gateway) Select(ctx context.Context, table string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", g.baseURL, table, params.Encode())
	if err := g.client.GetJSON(ctx, endpoint, g.headers(nil), out); err != nil {
		return fmt.Errorf("gateway select %s: %w", table, err)
	}
	return nil
}

// BuildInFilter renders an in-list filter value: in.("a","b").
// Empty inputs yield "", meaning the caller should skip the query.
func BuildInFilter(values []string) string {
	sanitized := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		sanitized = append(sanitized, `"`+strings.ReplaceAll(value, `"`, `\"`)+`"`)
	}
	if len(sanitized) == 0 {
		return ""
	}
	return "in.(" + strings.Join(sanitized, ",") + ")"
}

// SelectIn reads rows whose column matches any of the given values,
// with optional extra filter parameters. No values means no rows and
// no network call.
func (g *Gateway) SelectIn(ctx context.Context, table, column string, values []string, extra url.Values, out interface{}) error {
	filter := BuildInFilter(values)
	if filter == "" {
		return nil
	}

	params := url.Values{}
	params.Set(column, filter)
	for key, vals := range extra {
		for _, v := range vals {
			params.Add(key, v)
		}
	}
	return g.Select(ctx, table, params, out)
}

// Upsert writes rows with merge-on-conflict semantics, returning nothing.
// rows must marshal to a JSON array.
func (g *Gateway) Upsert(ctx context.Context, table, conflictColumns string, rows interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?on_conflict=%s", g.baseURL, table, url.QueryEscape(conflictColumns))
	headers := g.headers(map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	})
	if err := g.client.PostJSON(ctx, endpoint, headers, rows, nil); err != nil {
		return fmt.Errorf("gateway upsert %s: %w", table, err)
	}
	return nil
}

// Patch updates rows matched by the filter parameters
func (g *Gateway) Patch(ctx context.Context, table string, params url.Values, body interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", g.baseURL, table, params.Encode())
	headers := g.headers(map[string]string{"Prefer": "return=minimal"})
	if err := g.client.PatchJSON(ctx, endpoint, headers, body); err != nil {
		return fmt.Errorf("gateway patch %s: %w", table, err)
	}
	return nil
}

// RPC invokes a server-side function with a JSON payload
func (g *Gateway) RPC(ctx context.Context, fn string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/rpc/%s", g.baseURL, fn)
	if err := g.client.PostJSON(ctx, endpoint, g.headers(nil), payload, out); err != nil {
		return fmt.Errorf("gateway rpc %s: %w", fn, err)
	}
	return nil
}

// chunkStrings splits values into slices of at most size elements
func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = defaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
