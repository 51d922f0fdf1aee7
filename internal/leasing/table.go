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

package leasing

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

// Entry is the bookkeeping record of one queued work item
type Entry struct {
	Item      workitem.WorkItem `json:"item"`
	Sequence  uint64            `json:"sequence"`
	Token     string            `json:"token,omitempty"`
	VisibleAt time.Time         `json:"visibleAt"`
}

// State is a point-in-time copy of a Table, ordered by sequence
type State struct {
	Sequence uint64  `json:"sequence"`
	Entries  []Entry `json:"entries"`
}

// Table implements the lease protocol for queues keeping their
// items in process memory. Items are handed out in enqueue order,
// an item is visible if its VisibleAt is not after the clock.
type Table struct {
	mutex    sync.Mutex
	clock    supporting.Clock
	sequence uint64
	entries  map[string]*Entry
	order    []string
}

func NewTable(
	clock supporting.Clock,
) *Table {

	if clock == nil {
		clock = supporting.SystemClock
	}
	return &Table{
		clock:   clock,
		entries: make(map[string]*Entry),
		order:   make([]string, 0),
	}
}

// Enqueue assigns a new id to the item and returns it
func (t *Table) Enqueue(
	item workitem.WorkItem,
) (string, error) {

	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.sequence++
	item.ID = id
	item.AttemptCount = 0
	t.entries[id] = &Entry{
		Item:     item,
		Sequence: t.sequence,
	}
	t.order = append(t.order, id)
	return id, nil
}

func (t *Table) Lease(
	visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if visibilityTimeout <= 0 {
		return nil, errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	token, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := t.clock()
	for _, id := range t.order {
		entry := t.entries[id]
		if entry.VisibleAt.After(now) {
			continue
		}

		entry.Item.AttemptCount++
		entry.Token = token
		entry.VisibleAt = now.Add(visibilityTimeout)
		return &workqueue.Lease{
			Item:      entry.Item,
			Token:     token,
			ExpiresAt: entry.VisibleAt,
		}, nil
	}
	return nil, workqueue.ErrNoWorkItem
}

func (t *Table) Acknowledge(
	lease *workqueue.Lease,
) error {

	t.mutex.Lock()
	defer t.mutex.Unlock()

	entry, present := t.entries[lease.Item.ID]
	if !present {
		return nil
	}
	if entry.Token != lease.Token {
		return workqueue.ErrLeaseExpired
	}
	t.remove(lease.Item.ID)
	return nil
}

func (t *Table) Extend(
	lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if visibilityTimeout <= 0 {
		return errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	entry, present := t.entries[lease.Item.ID]
	if !present || entry.Token != lease.Token {
		return workqueue.ErrLeaseExpired
	}

	now := t.clock()
	if !entry.VisibleAt.After(now) {
		return workqueue.ErrLeaseExpired
	}

	entry.VisibleAt = now.Add(visibilityTimeout)
	lease.ExpiresAt = entry.VisibleAt
	return nil
}

func (t *Table) Depth() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.entries)
}

func (t *Table) Snapshot() State {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	entries := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		entries = append(entries, *t.entries[id])
	}
	return State{
		Sequence: t.sequence,
		Entries:  entries,
	}
}

// Restore replaces the table content with state
func (t *Table) Restore(
	state State,
) {

	t.mutex.Lock()
	defer t.mutex.Unlock()

	entries := slices.Clone(state.Entries)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	t.entries = make(map[string]*Entry, len(entries))
	t.order = make([]string, 0, len(entries))
	t.sequence = state.Sequence
	for i := range entries {
		entry := entries[i]
		if _, present := t.entries[entry.Item.ID]; present {
			continue
		}
		t.entries[entry.Item.ID] = &entry
		t.order = append(t.order, entry.Item.ID)
		if entry.Sequence > t.sequence {
			t.sequence = entry.Sequence
		}
	}
}

func (t *Table) remove(
	id string,
) {

	if _, present := t.entries[id]; !present {
		return
	}
	delete(t.entries, id)
	for i, candidate := range t.order {
		if candidate == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}
