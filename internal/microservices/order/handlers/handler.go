package handlers

import (
	"neocafe/internal/common/logger"
	"neocafe/internal/microservices/order/service"
)

type Handler struct {
	OrderHandler *OrderHandler
}

func New(s *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		OrderHandler: NewOrderHandler(s.OrderService, log),
	}
}
