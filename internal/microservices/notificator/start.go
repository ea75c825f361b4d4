package notificator

import (
	"context"

	"neocafe/internal/common/logger"
	"neocafe/internal/connections/rabbitmq"
	"neocafe/internal/microservices/notificator/service"
)

func Start(ctx context.Context, rmqClient *rabbitmq.Client, log *logger.Logger) error {
	if err := rmqClient.DeclareTopology(); err != nil {
		return err
	}
	svc := service.New(rmqClient, log)
	return svc.NotificatorService.Notify(ctx)
}
