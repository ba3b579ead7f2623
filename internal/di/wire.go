//go:build wireinject
// +build wireinject

package di

import (
	"IndiPull/pkg/config"
	"IndiPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideRegistry,

		// Infrastructure clients
		ProvideCache,
		ProvideHTTPClient,
		ProvideClickHouseClient,

		// Repositories and adapters
		ProvideSources,
		ProvideHistory,
		ProvideAlertPublisher,

		// Use cases
		ProvideCollector,
		ProvideDashboard,

		// Transport
		ProvideRateLimiter,
		ProvideDashboardHandler,
		ProvideHub,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
