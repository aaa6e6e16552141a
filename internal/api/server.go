// Package api serves the operational HTTP surface: health, metrics,
// stats and the on-demand scrape trigger.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carscout/internal/storage"
)

// Deps carries everything the handlers touch.
type Deps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Listings storage.ListingStore
	Source   string
	Logger   *zap.Logger
}

type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func NewServer(addr string, deps Deps) *Server {
	h := &handlers{deps: deps}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           newRouter(h, deps.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start serves until Shutdown; a closed listener is not an error.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
