package config

import "github.com/greenbasket/shop/pkg/config"

type ServiceConfig struct {
	config.Config
}

func Load() ServiceConfig {
	cfg := config.Load()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.GatewayURL, "PAYMENT_GATEWAY_URL")
	config.MustNonEmpty(cfg.GatewaySecret, "PAYMENT_GATEWAY_SECRET")

	return ServiceConfig{Config: cfg}
}
