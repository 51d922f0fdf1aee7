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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const record = `{"source":"rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`

func newTestServer(
	t *testing.T, handler func(ctx context.Context, data []byte) error,
) *httptest.Server {

	source, err := NewHttpSource(":0", DefaultPath)
	require.NoError(t, err)

	server := httptest.NewServer(source.(*httpSource).newRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func Test_Record_Is_Accepted(
	t *testing.T,
) {

	var received []byte
	server := newTestServer(t, func(_ context.Context, data []byte) error {
		received = data
		return nil
	})

	response, err := http.Post(server.URL+DefaultPath, "application/json", strings.NewReader(record))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusAccepted, response.StatusCode)
	assert.Equal(t, record, string(received))
}

func Test_Failed_Record_Asks_For_Retry(
	t *testing.T,
) {

	server := newTestServer(t, func(_ context.Context, _ []byte) error {
		return errors.Errorf("queue unavailable")
	})

	response, err := http.Post(server.URL+DefaultPath, "application/json", strings.NewReader(record))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
}

func Test_Oversized_Record(
	t *testing.T,
) {

	called := false
	server := newTestServer(t, func(_ context.Context, _ []byte) error {
		called = true
		return nil
	})

	payload := strings.Repeat("x", maxRecordSize+1)
	response, err := http.Post(server.URL+DefaultPath, "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, response.StatusCode)
	assert.False(t, called)
}

func Test_Health_And_Unknown_Paths(
	t *testing.T,
) {

	server := newTestServer(t, func(_ context.Context, _ []byte) error {
		return nil
	})

	response, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, err = http.Get(server.URL + DefaultPath)
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
}

func Test_Run_Stops_On_Cancel(
	t *testing.T,
) {

	source, err := NewHttpSource("127.0.0.1:0", DefaultPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- source.Run(ctx, func(_ context.Context, _ []byte) error {
			return nil
		})
	}()

	cancel()
	assert.NoError(t, <-done)
}

func Test_Http_Config_Loading(
	t *testing.T,
) {

	source, err := newHttpSource(&config.Config{
		Source: config.SourceConfig{
			Http: config.HttpSourceConfig{
				Address: "127.0.0.1:9000",
			},
		},
	})
	require.NoError(t, err)

	httpSource := source.(*httpSource)
	assert.Equal(t, "127.0.0.1:9000", httpSource.address)
	assert.Equal(t, DefaultPath, httpSource.path)
}
