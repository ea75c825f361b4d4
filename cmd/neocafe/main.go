package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"neocafe/internal/common/logger"
	"neocafe/internal/config"
	"neocafe/internal/connections/database"
	"neocafe/internal/connections/rabbitmq"
	"neocafe/internal/microservices/notificator"
	"neocafe/internal/microservices/order"
	"neocafe/internal/microservices/order/service"
)

const modes = "order-service | notification-subscriber | migrate"

func main() {
	mode := flag.String("mode", "", modes)
	cfgPath := flag.String("config", "config.yml", "path to YAML config, empty to use env only")
	port := flag.Int("port", 0, "order-service: http port, overrides config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	lg := logger.NewWithLevel(*mode, cfg.Log.Level)
	defer lg.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, lg)
	case "notification-subscriber":
		err = runSubscriber(ctx, cfg, lg)
	case "migrate":
		err = runMigrate(ctx, cfg, lg)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}

func runOrderService(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq connect error: %w", err)
	}
	defer rmq.Close()
	if err := rmq.DeclareTopology(); err != nil {
		return err
	}
	lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "vhost": cfg.RabbitMQ.VHost})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return order.Run(gctx, cfg.Server.Port, db, service.NewAMQPPublisher(rmq), cfg.Bonus.Rate(), lg)
	})
	g.Go(func() error { return watchBroker(gctx, rmq) })

	lg.Info("service_started", map[string]any{"port": cfg.Server.Port})
	return g.Wait()
}

func runSubscriber(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq connect error: %w", err)
	}
	defer rmq.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return notificator.Start(gctx, rmq, lg) })
	g.Go(func() error { return watchBroker(gctx, rmq) })

	lg.Info("service_started", nil)
	return g.Wait()
}

func runMigrate(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return err
	}
	lg.Info("migrations_applied", map[string]any{"versions": applied})
	return nil
}

// watchBroker fails the group when the broker drops the connection.
func watchBroker(ctx context.Context, rmq *rabbitmq.Client) error {
	closed := rmq.NotifyClose()
	select {
	case <-ctx.Done():
		return nil
	case amqpErr, ok := <-closed:
		if !ok || amqpErr == nil {
			return errors.New("rabbitmq connection closed")
		}
		return fmt.Errorf("rabbitmq connection lost: %w", amqpErr)
	}
}
