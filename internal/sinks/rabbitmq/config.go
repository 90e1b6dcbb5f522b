package rabbitmq

import (
	"fmt"
)

type Config struct {
	URL   string
	Queue string
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("RabbitMQ URL is required")
	}
	if c.Queue == "" {
		c.Queue = "clicks"
	}
	return nil
}

func (c *Config) GetType() string {
	return "rabbitmq"
}

func (c *Config) GetConnectionString() string {
	return c.URL
}
