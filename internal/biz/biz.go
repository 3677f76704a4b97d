// Package biz contains business logic layer implementations.
// This layer holds admission control, result caching and generation orchestration.
package biz

import (
	"CoverLane/internal/data"
	"CoverLane/pkg/platform"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewRateLimiterUseCase,
	NewOrchestrator,
	NewGenerationUsecase,
	NewMaintenanceTask,
	NewResultCache,
	NewResultMirror,
	platform.NewDefaultRegistry,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(RateLimitRepo), new(data.RateLimitStore)),
	wire.Bind(new(Renderer), new(*data.HTTPRenderer)),
	wire.Bind(new(AssetStore), new(data.AssetStore)),
	wire.Bind(new(HistoryRepo), new(*data.GenerationHistoryRepo)),
	wire.Bind(new(PlatformRegistry), new(*platform.Registry)),
)
