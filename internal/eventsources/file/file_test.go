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

package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(
	t *testing.T, lines ...string,
) string {

	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644))
	return path
}

func Test_Replays_All_Lines(
	t *testing.T,
) {

	path := writeRecords(t, `{"n":1}`, "", `  {"n":2}  `, `{"n":3}`)

	source, err := NewFileSource(path)
	require.NoError(t, err)

	received := make([]string, 0)
	err = source.Run(context.Background(), func(_ context.Context, data []byte) error {
		received = append(received, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, received)
}

func Test_Failed_Lines_Are_Skipped(
	t *testing.T,
) {

	path := writeRecords(t, "r1", "r2", "r3")

	source, err := NewFileSource(path)
	require.NoError(t, err)

	received := make([]string, 0)
	err = source.Run(context.Background(), func(_ context.Context, data []byte) error {
		if string(data) == "r2" {
			return errors.Errorf("enqueue failed")
		}
		received = append(received, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, received)
}

func Test_Cancelled_Replay_Stops(
	t *testing.T,
) {

	path := writeRecords(t, "r1", "r2", "r3")

	source, err := NewFileSource(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = source.Run(ctx, func(_ context.Context, _ []byte) error {
		calls++
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func Test_Missing_File(
	t *testing.T,
) {

	source, err := NewFileSource(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)

	err = source.Run(context.Background(), func(_ context.Context, _ []byte) error {
		return nil
	})
	assert.Error(t, err)
}

func Test_File_Source_Config_Loading(
	t *testing.T,
) {

	_, err := newFileSource(&config.Config{})
	assert.Error(t, err)

	source, err := newFileSource(&config.Config{
		Source: config.SourceConfig{
			File: config.FileConfig{
				Path: Stdin,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Stdin, source.(*fileSource).path)
}
