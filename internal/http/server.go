package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

// Server serves the engine until its context is cancelled, then
// drains in-flight requests.
type Server struct {
	srv *http.Server
}

func NewServer(address string, engine *gin.Engine) *Server {
	return &Server{srv: &http.Server{Addr: address, Handler: engine}}
}

func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
