package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AvaProtocol/ap-paymaster/pkg/logger"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsServer exposes reg on /metrics for the lifetime of one command.
type metricsServer struct {
	srv *http.Server
	ln  net.Listener
}

func startMetricsServer(addr string, reg prometheus.Gatherer, l logger.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m := &metricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
	}

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server stopped", "err", err)
		}
	}()
	return m, nil
}

func (m *metricsServer) Addr() string {
	return m.ln.Addr().String()
}

func (m *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	return m.srv.Shutdown(ctx)
}
