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

package postgresql

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

const DefaultTable = "ddl_work_queue"

func init() {
	workqueue.RegisterWorkQueue(config.PostgresqlWorkQueue, newPostgresqlWorkQueue)
}

type postgresqlWorkQueue struct {
	poolConfig *pgxpool.Config
	pool       *pgxpool.Pool
	table      string
	index      string
	logger     *logging.Logger
}

func newPostgresqlWorkQueue(
	c *config.Config,
) (workqueue.WorkQueue, error) {

	connection := config.GetOrDefault(c, config.PropertyPostgresqlWorkQueueConnection, "")
	if connection == "" {
		return nil, errors.Errorf("PostgreSQL work queue needs a connection string to be configured")
	}

	poolConfig, err := pgxpool.ParseConfig(connection)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	if password := config.GetOrDefault(c, config.PropertyPostgresqlWorkQueuePassword, ""); password != "" {
		poolConfig.ConnConfig.Password = password
	}

	return NewPostgresqlWorkQueue(
		poolConfig, config.GetOrDefault(c, config.PropertyPostgresqlWorkQueueTable, DefaultTable),
	)
}

// NewPostgresqlWorkQueue creates a work queue stored in a single
// table. Concurrent consumers lease with FOR UPDATE SKIP LOCKED.
func NewPostgresqlWorkQueue(
	poolConfig *pgxpool.Config, table string,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("PostgresqlWorkQueue")
	if err != nil {
		return nil, err
	}

	if table == "" {
		table = DefaultTable
	}

	return &postgresqlWorkQueue{
		poolConfig: poolConfig,
		table:      pgx.Identifier{table}.Sanitize(),
		index:      pgx.Identifier{table + "_visible_idx"}.Sanitize(),
		logger:     logger,
	}, nil
}

func (p *postgresqlWorkQueue) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, p.poolConfig)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Errorf("failed to connect to PostgreSQL: %v", err)
	}
	p.pool = pool

	for _, template := range []string{queryTemplateCreateTable, queryTemplateCreateIndex} {
		if _, err := pool.Exec(ctx, p.query(template)); err != nil && !isConcurrentCreation(err) {
			return errors.Wrap(err, 0)
		}
	}

	p.logger.Infof("Using PostgreSQL work queue table %s", p.table)
	return nil
}

func (p *postgresqlWorkQueue) Stop() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *postgresqlWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	_, err := p.pool.Exec(ctx, p.query(queryTemplateEnqueue),
		item.ClusterIdentifier, item.EnqueuedAt.UTC(), item.SourceEventID,
	)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *postgresqlWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if visibilityTimeout <= 0 {
		return nil, errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	token, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	var id int64
	var attemptCount int32
	var expiresAt time.Time
	item := workitem.WorkItem{}
	err = p.pool.QueryRow(ctx, p.query(queryTemplateLease), visibilityTimeout.Seconds(), token).Scan(
		&id, &item.ClusterIdentifier, &item.EnqueuedAt, &item.SourceEventID, &attemptCount, &expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workqueue.ErrNoWorkItem
		}
		return nil, errors.Wrap(err, 0)
	}

	item.ID = strconv.FormatInt(id, 10)
	item.EnqueuedAt = item.EnqueuedAt.UTC()
	item.AttemptCount = uint32(attemptCount)

	return &workqueue.Lease{
		Item:      item,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (p *postgresqlWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	id, err := strconv.ParseInt(lease.Item.ID, 10, 64)
	if err != nil {
		return errors.Errorf("invalid work item id '%s'", lease.Item.ID)
	}

	tag, err := p.pool.Exec(ctx, p.query(queryTemplateAcknowledge), id, lease.Token)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = p.pool.QueryRow(ctx, p.query(queryTemplateExists), id).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return errors.Wrap(err, 0)
	}
	return workqueue.ErrLeaseExpired
}

func (p *postgresqlWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if visibilityTimeout <= 0 {
		return errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	id, err := strconv.ParseInt(lease.Item.ID, 10, 64)
	if err != nil {
		return errors.Errorf("invalid work item id '%s'", lease.Item.ID)
	}

	var expiresAt time.Time
	err = p.pool.QueryRow(ctx, p.query(queryTemplateExtend), id, lease.Token, visibilityTimeout.Seconds()).
		Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return workqueue.ErrLeaseExpired
		}
		return errors.Wrap(err, 0)
	}

	lease.ExpiresAt = expiresAt
	return nil
}

func (p *postgresqlWorkQueue) Depth(
	ctx context.Context,
) (int, error) {

	var depth int64
	if err := p.pool.QueryRow(ctx, p.query(queryTemplateDepth)).Scan(&depth); err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return int(depth), nil
}

func (p *postgresqlWorkQueue) query(
	template string,
) string {

	return fmt.Sprintf(template, p.table, p.index)
}

// isConcurrentCreation reports whether a CREATE ... IF NOT EXISTS
// lost a race against another instance creating the same object
func isConcurrentCreation(
	err error,
) bool {

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation, pgerrcode.DuplicateTable, pgerrcode.DuplicateObject:
		return true
	}
	return false
}
