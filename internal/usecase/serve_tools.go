package usecase

import (
	"context"
	"log/slog"

	"github.com/i2y/misperer/internal/domain"
)

// ServeToolsUseCase provides the functionality to list available tools.
type ServeToolsUseCase struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewServeToolsUseCase creates a new ServeToolsUseCase.
func NewServeToolsUseCase(catalog *Catalog, logger *slog.Logger) *ServeToolsUseCase {
	return &ServeToolsUseCase{
		catalog: catalog,
		logger:  logger.With("usecase", "ServeTools"),
	}
}

// Execute returns every tool of the catalog in declaration order.
func (uc *ServeToolsUseCase) Execute(ctx context.Context) []domain.Tool {
	tools := uc.catalog.List()
	uc.logger.Debug("Listed tools", slog.Int("count", len(tools)))
	return tools
}
