package http

import (
	"github.com/nats-io/nats.go"

	"github.com/onepass-ch/onepass-sub008/internal/adapters/postgres"
	"github.com/onepass-ch/onepass-sub008/internal/adapters/valkey"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Organizations *usecases.OrganizationService
	Events        *usecases.EventService
	Map           *usecases.MapService
	Passes        *usecases.PassService
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
	JWTSecret     []byte
}
