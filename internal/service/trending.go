package service

import (
	"context"
)

// trendingCaller invokes the storage-side trending refresh function
type trendingCaller interface {
	RPC(ctx context.Context, fn string, payload interface{}, out interface{}) error
}

// TrendingService delegates trending-rank computation to a server-side
// aggregate over the market data the other jobs maintain
type TrendingService struct {
	gateway trendingCaller
	chainID int64
}

// NewTrendingService creates a new trending refresh service
func NewTrendingService(gateway trendingCaller, chainID int64) *TrendingService {
	return &TrendingService{gateway: gateway, chainID: chainID}
}

// Refresh recomputes trending ranks for the chain
func (s *TrendingService) Refresh(ctx context.Context) error {
	return s.gateway.RPC(ctx, "refresh_token_trending", map[string]int64{"p_chain_id": s.chainID}, nil)
}
