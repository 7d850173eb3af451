// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ava-labs/blockprop/utils/logging"
)

const metricsPattern = "/ext/metrics"

// metricsServer exposes the harness metrics while a scenario runs.
type metricsServer struct {
	addr     string
	registry *prometheus.Registry
	server   http.Server
	log      logging.Logger
}

func newMetricsServer(addr string, registry *prometheus.Registry, log logging.Logger) *metricsServer {
	return &metricsServer{
		addr:     addr,
		registry: registry,
		log:      log,
	}
}

// URI returns the address metrics are served at. Only valid after Start.
func (s *metricsServer) URI() string {
	return fmt.Sprintf("http://%s%s", s.addr, metricsPattern)
}

func (s *metricsServer) Start() (runError <-chan error, err error) {
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.addr = listener.Addr().String()

	s.server = http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			close(errs)
			return
		}
		errs <- err
	}()

	s.log.Info("serving harness metrics", zap.String("uri", s.URI()))
	return errs, nil
}

func (s *metricsServer) Stop() error {
	const shutdownTimeout = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
