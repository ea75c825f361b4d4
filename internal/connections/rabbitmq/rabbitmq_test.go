package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"neocafe/internal/config"
)

func TestURL(t *testing.T) {
	cfg := config.RabbitMQConfig{Host: "mq", Port: 5672, User: "guest", Password: "pw", VHost: "/"}
	assert.Equal(t, "amqp://guest:pw@mq:5672/", URL(cfg))

	cfg.VHost = "cafe"
	cfg.UseTLS = true
	assert.Equal(t, "amqps://guest:pw@mq:5672/cafe", URL(cfg))
}

func TestPingOnClosedClient(t *testing.T) {
	assert.Error(t, (&Client{}).Ping())
}
