package service

import (
	"github.com/shopspring/decimal"

	"neocafe/internal/common/logger"
	"neocafe/internal/microservices/order/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(store repository.Store, publisher Publisher, log *logger.Logger, cashbackRate decimal.Decimal) *Service {
	return &Service{
		OrderService: NewOrderService(store, publisher, log, cashbackRate),
	}
}
