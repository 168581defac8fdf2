package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/config"
)

// StartHTTPServer boots a gin engine and registers all provided services
// under /api.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	api := engine.Group("/api")
	for _, r := range registrars {
		r.Register(api)
	}

	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	return engine.Run(addr)
}
