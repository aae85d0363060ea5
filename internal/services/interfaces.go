package services

import (
	"context"

	"balance-aggregator/internal/models"
)

// AuthServiceInterface defines the interface for authentication services
type AuthServiceInterface interface {
	Enabled() bool
	ValidateAPIKey(key string) (*models.APIKey, error)
}

// AggregatorInterface defines the interface for balance aggregation
type AggregatorInterface interface {
	Aggregate(ctx context.Context, req *models.SumRequest) (models.Balances, error)
}

// AlgorandQueryInterface defines the Algorand lookups exposed over HTTP
type AlgorandQueryInterface interface {
	AppGlobalState(ctx context.Context, appID string) (map[string]uint64, error)
	PriceFromAlgoFiLP(ctx context.Context, lpAssetID, unknownAssetID string) (*LPPrice, error)
}

// HealthProberInterface defines the interface for upstream health probes
type HealthProberInterface interface {
	CheckAll(ctx context.Context) map[string]*HealthCheck
}
