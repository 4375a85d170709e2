package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const endpoint = "/metrics"

// Server exposes the gathered metrics to prometheus over http.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:              ":" + strconv.FormatUint(uint64(port), 10),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "metrics_server").Logger(),
	}
}

// Ready starts serving in the background. The returned channel is already
// closed.
func (m *Server) Ready() <-chan struct{} {
	m.log.Info().Str("address", m.server.Addr).Str("endpoint", endpoint).Msg("serving metrics")
	go func() {
		err := m.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			m.log.Debug().Msg("metrics server shut down")
			return
		}
		m.log.Err(err).Msg("metrics server failed")
	}()
	ready := make(chan struct{})
	close(ready)
	return ready
}

// Done shuts the server down, waiting at most five seconds for open
// requests.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.server.Shutdown(ctx); err != nil {
			m.log.Warn().Err(err).Msg("could not shut down metrics server cleanly")
		}
	}()
	return done
}
