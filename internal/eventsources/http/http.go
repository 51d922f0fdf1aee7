/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
)

const (
	DefaultAddress = ":8080"
	DefaultPath    = "/events"

	maxRecordSize = 1024 * 1024
)

func init() {
	eventsource.RegisterSource(config.HttpSource, newHttpSource)
}

// httpSource receives one audit record per POST request, e.g. from
// an EventBridge API destination. A failed record is answered with
// a 5xx status, the sender is expected to retry.
type httpSource struct {
	address string
	path    string
	logger  *logging.Logger

	listener net.Listener
	server   *http.Server
}

func newHttpSource(
	c *config.Config,
) (eventsource.Source, error) {

	return NewHttpSource(
		config.GetOrDefault(c, config.PropertyHttpSourceAddress, DefaultAddress),
		config.GetOrDefault(c, config.PropertyHttpSourcePath, DefaultPath),
	)
}

func NewHttpSource(
	address, path string,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("HttpSource")
	if err != nil {
		return nil, err
	}

	return &httpSource{
		address: address,
		path:    path,
		logger:  logger,
	}, nil
}

func (h *httpSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	listener, err := net.Listen("tcp", h.address)
	if err != nil {
		return errors.Errorf("failed to listen on %s: %v", h.address, err)
	}
	h.listener = listener

	h.server = &http.Server{
		Handler:           h.newRouter(handler),
		ReadHeaderTimeout: time.Second * 10,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Warnf("Failed to shutdown http source gracefully: %v", err)
		}
	}()

	h.logger.Infof("Accepting audit records at http://%s%s", listener.Addr(), h.path)
	if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (h *httpSource) Stop() error {
	return nil
}

func (h *httpSource) newRouter(
	handler eventsource.Handler,
) http.Handler {

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post(h.path, func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordSize))
		if err != nil {
			http.Error(w, "failed to read record", http.StatusRequestEntityTooLarge)
			return
		}

		if err := handler(r.Context(), data); err != nil {
			h.logger.Warnf("Record of request %s failed: %v", middleware.GetReqID(r.Context()), err)
			http.Error(w, "record could not be processed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	return r
}
