package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"edupulse/internal/config"
	"edupulse/internal/container"
	"edupulse/ui"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	defer c.Close()

	// Ops endpoints (health + pprof) run beside the dashboard API.
	go runOpsServer(cfg.Server.OpsPort)

	gin.SetMode(cfg.Server.GinMode)
	server := ui.NewServer(c.Session, c.Provider, cfg.Engine, c.Logger)
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("dashboard API server failed: %v", err)
	}
}

// runOpsServer serves the health check and the default pprof mux.
func runOpsServer(port string) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/debug", http.DefaultServeMux)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Printf("ops server stopped: %v", err)
	}
}
