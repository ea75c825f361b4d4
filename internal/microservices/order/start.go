package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"neocafe/internal/common/httpx"
	"neocafe/internal/common/logger"
	"neocafe/internal/microservices/order/handlers"
	"neocafe/internal/microservices/order/repository"
	"neocafe/internal/microservices/order/service"
)

// Run serves the order API on port until ctx is cancelled.
func Run(ctx context.Context, port int, db *sql.DB, publisher service.Publisher, cashbackRate decimal.Decimal, log *logger.Logger) error {
	// Initialize repository
	store := repository.NewPostgresStore(db, 0)
	// Initialize service
	svc := service.New(store, publisher, log, cashbackRate)
	handler := handlers.New(svc, log)

	return Listener(ctx, port, handler, log)
}

func Listener(ctx context.Context, port int, handler *handlers.Handler, log *logger.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	log.Info("http_listening", map[string]any{"addr": addr})
	return httpx.New(addr, handlers.Router(handler)).Run(ctx)
}
