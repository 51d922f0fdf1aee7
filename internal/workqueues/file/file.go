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
	"sync"
	"time"

	"github.com/docker/docker/pkg/ioutils"
	"github.com/go-errors/errors"
	"github.com/gofrs/flock"
	"github.com/gookit/goutil/fsutil"
	"github.com/noctarius/cluster-ddl-trigger/internal/leasing"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

func init() {
	workqueue.RegisterWorkQueue(config.FileWorkQueue, newFileWorkQueue)
}

const lockRetryDelay = time.Millisecond * 10

// fileWorkQueue keeps the queue in a state file which is rewritten
// atomically after every mutation. Every operation holds an exclusive
// lock on "<path>.lock" and reloads the state file first, so several
// processes (the pipeline and the queue commands) can share one path.
type fileWorkQueue struct {
	path     string
	table    *leasing.Table
	mutex    sync.Mutex
	fileLock *flock.Flock
	encoder  *encoding.JsonEncoder
	decoder  *encoding.JsonDecoder
	logger   *logging.Logger

	writeState func(data []byte) error
}

func newFileWorkQueue(
	c *config.Config,
) (workqueue.WorkQueue, error) {

	path := config.GetOrDefault(c, config.PropertyFileWorkQueuePath, "")
	if path == "" {
		return nil, errors.Errorf("FileWorkQueue needs a path to be configured")
	}
	return NewFileWorkQueue(path, supporting.SystemClock)
}

func NewFileWorkQueue(
	path string, clock supporting.Clock,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("FileWorkQueue")
	if err != nil {
		return nil, err
	}

	if err := fsutil.MkParentDir(path); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	if fsutil.IsDir(path) {
		return nil, errors.Errorf("path '%s' exists already but is not a file", path)
	}

	queue := &fileWorkQueue{
		path:     path,
		table:    leasing.NewTable(clock),
		fileLock: flock.New(path + ".lock"),
		encoder:  encoding.NewJsonEncoder(true),
		decoder:  encoding.NewJsonDecoder(true),
		logger:   logger,
	}
	queue.writeState = queue.writeAtomically
	return queue, nil
}

func (f *fileWorkQueue) Start() error {
	f.logger.Infof("Starting FileWorkQueue at %s", f.path)
	return f.withState(context.Background(), func() error {
		f.logger.Infof("Restored %d work items from %s", f.table.Depth(), f.path)
		return nil
	})
}

// Stop doesn't write, every mutation is on disk already
func (f *fileWorkQueue) Stop() error {
	f.logger.Infof("Stopping FileWorkQueue at %s", f.path)
	return nil
}

func (f *fileWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	return f.mutate(ctx, func() error {
		_, err := f.table.Enqueue(item)
		return err
	})
}

func (f *fileWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	var lease *workqueue.Lease
	err := f.mutate(ctx, func() (err error) {
		lease, err = f.table.Lease(visibilityTimeout)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

func (f *fileWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	return f.mutate(ctx, func() error {
		return f.table.Acknowledge(lease)
	})
}

func (f *fileWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	return f.mutate(ctx, func() error {
		return f.table.Extend(lease, visibilityTimeout)
	})
}

func (f *fileWorkQueue) Depth(
	ctx context.Context,
) (int, error) {

	depth := 0
	err := f.withState(ctx, func() error {
		depth = f.table.Depth()
		return nil
	})
	return depth, err
}

// mutate applies change to the current state and persists it. If
// the change or the save fails the state on disk and in memory stays
// as it was before.
func (f *fileWorkQueue) mutate(
	ctx context.Context, change func() error,
) error {

	return f.withState(ctx, func() error {
		before := f.table.Snapshot()
		if err := change(); err != nil {
			f.table.Restore(before)
			return err
		}
		if err := f.save(); err != nil {
			f.table.Restore(before)
			return err
		}
		return nil
	})
}

// withState runs fn under the process and file lock, after the
// table was reloaded from the state file
func (f *fileWorkQueue) withState(
	ctx context.Context, fn func() error,
) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	locked, err := f.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if !locked {
		return errors.Errorf("failed to lock work queue state '%s'", f.path)
	}
	defer func() {
		if err := f.fileLock.Unlock(); err != nil {
			f.logger.Warnf("Failed to unlock work queue state %s: %v", f.path, err)
		}
	}()

	if err := f.load(); err != nil {
		return err
	}
	return fn()
}

func (f *fileWorkQueue) save() error {
	data, err := f.encoder.Marshal(f.table.Snapshot())
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return f.writeState(data)
}

func (f *fileWorkQueue) writeAtomically(
	data []byte,
) error {

	writer, err := ioutils.NewAtomicFileWriter(f.path, 0644)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return errors.Wrap(err, 0)
	}

	// The rename to the final path happens on close
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (f *fileWorkQueue) load() error {
	if !fsutil.PathExists(f.path) {
		f.table.Restore(leasing.State{})
		return nil
	}

	if fsutil.IsDir(f.path) {
		return errors.Errorf("path '%s' exists already but is not a file", f.path)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if len(data) == 0 {
		f.table.Restore(leasing.State{})
		return nil
	}

	state := leasing.State{}
	if err := f.decoder.Unmarshal(data, &state); err != nil {
		return errors.Errorf("failed to read work queue state from '%s': %v", f.path, err)
	}

	f.table.Restore(state)
	return nil
}
