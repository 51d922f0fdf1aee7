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
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
)

const (
	// Stdin as path reads records from the standard input
	Stdin = "-"

	maxLineSize = 1024 * 1024
)

func init() {
	eventsource.RegisterSource(config.FileSource, newFileSource)
}

// fileSource replays a file with one audit record per line. It is
// meant for backfills and tests, failed records are logged and
// skipped since the file can't redeliver them.
type fileSource struct {
	path   string
	logger *logging.Logger
}

func newFileSource(
	c *config.Config,
) (eventsource.Source, error) {

	path := config.GetOrDefault(c, config.PropertyFileSourcePath, "")
	if path == "" {
		return nil, errors.Errorf("file source needs the path to be configured")
	}
	return NewFileSource(path)
}

func NewFileSource(
	path string,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("FileSource")
	if err != nil {
		return nil, err
	}

	return &fileSource{
		path:   path,
		logger: logger,
	}, nil
}

func (f *fileSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	var reader io.Reader = os.Stdin
	if f.path != Stdin {
		file, err := os.Open(f.path)
		if err != nil {
			return errors.Errorf("failed to open record file '%s': %v", f.path, err)
		}
		defer file.Close()
		reader = file
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNumber, failed := 0, 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// the scanner reuses its buffer
		data := make([]byte, len(line))
		copy(data, line)

		if err := handler(ctx, data); err != nil {
			failed++
			f.logger.Warnf("Record in line %d of %s failed: %v", lineNumber, f.path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Errorf("failed to read record file '%s': %v", f.path, err)
	}

	f.logger.Infof("Replayed %d line(s) of %s, %d failed", lineNumber, f.path, failed)
	return nil
}

func (f *fileSource) Stop() error {
	return nil
}
