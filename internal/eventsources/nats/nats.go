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
	"time"

	"github.com/go-errors/errors"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/natsclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
)

const (
	DefaultStream    = "RDS_AUDIT"
	DefaultSubject   = "rds.audit"
	DefaultDurable   = "cluster-ddl-trigger"
	DefaultFetchWait = time.Second

	fetchBatch = 10
)

func init() {
	eventsource.RegisterSource(config.NatsSource, newNatsSource)
}

// natsSource pulls audit records from an existing JetStream stream
// through a durable consumer. Failed records are negatively
// acknowledged and redelivered by the server.
type natsSource struct {
	conn      *nats.Conn
	stream    string
	subject   string
	durable   string
	fetchWait time.Duration
	logger    *logging.Logger
}

func newNatsSource(
	c *config.Config,
) (eventsource.Source, error) {

	conn, err := natsclient.Connect(c, natsclient.Properties{
		Address:                config.PropertyNatsSourceAddress,
		Authorization:          config.PropertyNatsSourceAuthorization,
		UserinfoUsername:       config.PropertyNatsSourceUserinfoUsername,
		UserinfoPassword:       config.PropertyNatsSourceUserinfoPassword,
		CredentialsCertificate: config.PropertyNatsSourceCredentialsCertificate,
		CredentialsSeeds:       config.PropertyNatsSourceCredentialsSeeds,
		Jwt:                    config.PropertyNatsSourceJwt,
		JwtSeed:                config.PropertyNatsSourceJwtSeed,
		Timeout:                config.PropertyNatsSourceTimeout,
	})
	if err != nil {
		return nil, err
	}

	return NewNatsSource(
		conn,
		config.GetOrDefault(c, config.PropertyNatsSourceStream, DefaultStream),
		config.GetOrDefault(c, config.PropertyNatsSourceSubject, DefaultSubject),
		config.GetOrDefault(c, config.PropertyNatsSourceDurable, DefaultDurable),
		config.GetOrDefault(c, config.PropertyNatsSourceFetchWait, DefaultFetchWait),
	)
}

func NewNatsSource(
	conn *nats.Conn, stream, subject, durable string, fetchWait time.Duration,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("NatsSource")
	if err != nil {
		return nil, err
	}

	if fetchWait <= 0 {
		fetchWait = DefaultFetchWait
	}

	return &natsSource{
		conn:      conn,
		stream:    stream,
		subject:   subject,
		durable:   durable,
		fetchWait: fetchWait,
		logger:    logger,
	}, nil
}

func (n *natsSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	jetStreamContext, err := n.conn.JetStream()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	subscription, err := jetStreamContext.PullSubscribe(
		n.subject, n.durable,
		nats.BindStream(n.stream),
		nats.AckExplicit(),
		nats.ManualAck(),
	)
	if err != nil {
		return errors.Errorf("failed to subscribe consumer '%s' to stream '%s': %v", n.durable, n.stream, err)
	}

	n.logger.Infof("Consuming audit records from NATS stream %s as %s", n.stream, n.durable)
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, n.fetchWait)
		messages, err := subscription.Fetch(fetchBatch, nats.Context(fetchCtx))
		cancel()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return errors.Errorf("failed to fetch from NATS stream %s: %v", n.stream, err)
		}

		for _, message := range messages {
			if err := handler(ctx, message.Data); err != nil {
				n.logger.Warnf("Record on %s failed and will be redelivered: %v", message.Subject, err)
				if err := message.Nak(); err != nil {
					n.logger.Warnf("Failed to nak record: %v", err)
				}
				continue
			}
			if err := message.Ack(); err != nil {
				n.logger.Warnf("Failed to ack record: %v", err)
			}
		}
	}
}

func (n *natsSource) Stop() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
