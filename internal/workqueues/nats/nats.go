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

package nats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/natsclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

const (
	DefaultStream    = "DDL_WORK_QUEUE"
	DefaultSubject   = "ddl.workitems"
	DefaultDurable   = "ddl-applier"
	DefaultFetchWait = time.Millisecond * 250

	headerSourceEventId = "Source-Event-Id"

	ackPayload        = "+ACK"
	inProgressPayload = "+WPI"
)

func init() {
	workqueue.RegisterWorkQueue(config.NatsWorkQueue, newNatsWorkQueue)
}

// natsWorkQueue stores items in a JetStream stream with work queue
// retention, leases are deliveries of a durable pull consumer. The
// visibility window is the consumer's AckWait, fixed at creation.
type natsWorkQueue struct {
	conn      *nats.Conn
	stream    string
	subject   string
	durable   string
	ackWait   time.Duration
	fetchWait time.Duration
	logger    *logging.Logger

	mutex            sync.Mutex
	jetStreamContext nats.JetStreamContext
	subscription     *nats.Subscription
}

func newNatsWorkQueue(
	c *config.Config,
) (workqueue.WorkQueue, error) {

	conn, err := natsclient.Connect(c, natsclient.Properties{
		Address:                config.PropertyNatsWorkQueueAddress,
		Authorization:          config.PropertyNatsWorkQueueAuthorization,
		UserinfoUsername:       config.PropertyNatsWorkQueueUserinfoUsername,
		UserinfoPassword:       config.PropertyNatsWorkQueueUserinfoPassword,
		CredentialsCertificate: config.PropertyNatsWorkQueueCredentialsCertificate,
		CredentialsSeeds:       config.PropertyNatsWorkQueueCredentialsSeeds,
		Jwt:                    config.PropertyNatsWorkQueueJwt,
		JwtSeed:                config.PropertyNatsWorkQueueJwtSeed,
		Timeout:                config.PropertyNatsWorkQueueTimeout,
	})
	if err != nil {
		return nil, err
	}

	return NewNatsWorkQueue(
		conn,
		config.GetOrDefault(c, config.PropertyNatsWorkQueueStream, DefaultStream),
		config.GetOrDefault(c, config.PropertyNatsWorkQueueSubject, DefaultSubject),
		config.GetOrDefault(c, config.PropertyNatsWorkQueueDurable, DefaultDurable),
		workqueue.VisibilityTimeout(c),
		config.GetOrDefault(c, config.PropertyNatsWorkQueueFetchWait, DefaultFetchWait),
	)
}

func NewNatsWorkQueue(
	conn *nats.Conn, stream, subject, durable string, ackWait, fetchWait time.Duration,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("NatsWorkQueue")
	if err != nil {
		return nil, err
	}

	if fetchWait <= 0 {
		fetchWait = DefaultFetchWait
	}

	return &natsWorkQueue{
		conn:      conn,
		stream:    stream,
		subject:   subject,
		durable:   durable,
		ackWait:   ackWait,
		fetchWait: fetchWait,
		logger:    logger,
	}, nil
}

func (n *natsWorkQueue) Start() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	jetStreamContext, err := n.conn.JetStream()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	_, err = jetStreamContext.AddStream(&nats.StreamConfig{
		Name:      n.stream,
		Subjects:  []string{n.subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return errors.Errorf("failed to create stream '%s': %v", n.stream, err)
	}

	subscription, err := jetStreamContext.PullSubscribe(
		n.subject, n.durable,
		nats.BindStream(n.stream),
		nats.AckExplicit(),
		nats.AckWait(n.ackWait),
		nats.MaxDeliver(-1),
		nats.ManualAck(),
	)
	if err != nil {
		return errors.Errorf("failed to subscribe consumer '%s': %v", n.durable, err)
	}

	n.jetStreamContext = jetStreamContext
	n.subscription = subscription
	n.logger.Infof("Using NATS stream %s with consumer %s", n.stream, n.durable)
	return nil
}

func (n *natsWorkQueue) Stop() error {
	// The durable consumer must survive, hence no unsubscribe
	n.conn.Close()
	return nil
}

func (n *natsWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	body, err := item.MarshalBody()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	header := nats.Header{}
	if item.SourceEventID != "" {
		header.Set(headerSourceEventId, item.SourceEventID)
	}

	_, err = n.jetStreamContext.PublishMsg(
		&nats.Msg{
			Subject: n.subject,
			Header:  header,
			Data:    body,
		},
		nats.Context(ctx),
	)
	return err
}

func (n *natsWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if visibilityTimeout <= 0 {
		return nil, errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}
	if visibilityTimeout != n.ackWait {
		n.logger.Debugf("Requested visibility timeout %s, the consumer's AckWait %s applies", visibilityTimeout, n.ackWait)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, n.fetchWait)
	defer cancel()

	messages, err := n.subscription.Fetch(1, nats.Context(fetchCtx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, workqueue.ErrNoWorkItem
		}
		return nil, err
	}
	if len(messages) == 0 {
		return nil, workqueue.ErrNoWorkItem
	}

	deliveredAt := time.Now()
	message := messages[0]
	metadata, err := message.Metadata()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	item, err := workitem.UnmarshalBody(message.Data)
	if err != nil {
		return nil, errors.Errorf("message %d has an unexpected body: %v", metadata.Sequence.Stream, err)
	}

	item.ID = strconv.FormatUint(metadata.Sequence.Stream, 10)
	item.AttemptCount = uint32(metadata.NumDelivered)
	item.SourceEventID = message.Header.Get(headerSourceEventId)

	return &workqueue.Lease{
		Item:      item,
		Token:     message.Reply,
		ExpiresAt: deliveredAt.Add(n.ackWait),
	}, nil
}

// Acknowledge sends the ack to the delivery's reply subject. The
// server accepts acks of superseded deliveries, too.
func (n *natsWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	if err := n.conn.Publish(lease.Token, []byte(ackPayload)); err != nil {
		return errors.Wrap(err, 0)
	}
	return n.flush(ctx)
}

// Extend marks the delivery as in progress, which restarts the
// AckWait timer. The requested timeout can't be honored beyond that.
func (n *natsWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if visibilityTimeout <= 0 {
		return errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	if lease.Expired(time.Now()) {
		return workqueue.ErrLeaseExpired
	}

	if err := n.conn.Publish(lease.Token, []byte(inProgressPayload)); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := n.flush(ctx); err != nil {
		return err
	}

	lease.ExpiresAt = time.Now().Add(n.ackWait)
	return nil
}

func (n *natsWorkQueue) Depth(
	ctx context.Context,
) (int, error) {

	info, err := n.jetStreamContext.StreamInfo(n.stream, nats.Context(ctx))
	if err != nil {
		return 0, err
	}
	return int(info.State.Msgs), nil
}

// flush waits for the server to have processed everything
// published so far
func (n *natsWorkQueue) flush(
	ctx context.Context,
) error {

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	return n.conn.FlushWithContext(ctx)
}
