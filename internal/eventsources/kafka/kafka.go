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

package kafka

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
	"github.com/noctarius/cluster-ddl-trigger/spi/version"
)

const (
	DefaultGroup  = "cluster-ddl-trigger"
	DefaultOffset = "newest"
)

var defaultBrokers = []string{"localhost:9092"}

func init() {
	eventsource.RegisterSource(config.KafkaSource, newKafkaSource)
}

// kafkaSource joins a consumer group on the audit topic. Offsets
// are marked only after the handler succeeded. A failed record ends
// the group session, the partition is consumed again from the last
// committed offset.
type kafkaSource struct {
	brokers []string
	topic   string
	group   string
	config  *sarama.Config
	logger  *logging.Logger

	consumerGroup sarama.ConsumerGroup
}

func newKafkaSource(
	c *config.Config,
) (eventsource.Source, error) {

	topic := config.GetOrDefault(c, config.PropertyKafkaSourceTopic, "")
	if topic == "" {
		return nil, errors.Errorf("Kafka source needs the topic to be configured")
	}

	saramaConfig, err := newSaramaConfig(c)
	if err != nil {
		return nil, err
	}

	return NewKafkaSource(
		config.GetOrDefault(c, config.PropertyKafkaSourceBrokers, defaultBrokers),
		topic, config.GetOrDefault(c, config.PropertyKafkaSourceGroup, DefaultGroup),
		saramaConfig,
	)
}

func NewKafkaSource(
	brokers []string, topic, group string, saramaConfig *sarama.Config,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("KafkaSource")
	if err != nil {
		return nil, err
	}

	return &kafkaSource{
		brokers: brokers,
		topic:   topic,
		group:   group,
		config:  saramaConfig,
		logger:  logger,
	}, nil
}

func newSaramaConfig(
	c *config.Config,
) (*sarama.Config, error) {

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = version.BinName
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	switch offset := config.GetOrDefault(c, config.PropertyKafkaSourceOffset, DefaultOffset); offset {
	case "newest":
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	case "oldest":
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return nil, errors.Errorf("Kafka source offset must be 'newest' or 'oldest', got '%s'", offset)
	}

	if config.GetOrDefault(c, config.PropertyKafkaSourceSaslEnabled, false) {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = config.GetOrDefault(
			c, config.PropertyKafkaSourceSaslUser, "",
		)
		saramaConfig.Net.SASL.Password = config.GetOrDefault(
			c, config.PropertyKafkaSourceSaslPassword, "",
		)
		saramaConfig.Net.SASL.Mechanism = config.GetOrDefault[sarama.SASLMechanism](
			c, config.PropertyKafkaSourceSaslMechanism, sarama.SASLTypePlaintext,
		)
	}

	if config.GetOrDefault(c, config.PropertyKafkaSourceTlsEnabled, false) {
		saramaConfig.Net.TLS.Enable = true
		saramaConfig.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyKafkaSourceTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyKafkaSourceTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	if err := saramaConfig.Validate(); err != nil {
		return nil, errors.Errorf("invalid Kafka source configuration: %v", err)
	}
	return saramaConfig, nil
}

func (k *kafkaSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	consumerGroup, err := sarama.NewConsumerGroup(k.brokers, k.group, k.config)
	if err != nil {
		return errors.Errorf("failed to join Kafka consumer group %s: %v", k.group, err)
	}
	k.consumerGroup = consumerGroup

	go func() {
		for err := range consumerGroup.Errors() {
			k.logger.Warnf("Kafka consumer group %s: %v", k.group, err)
		}
	}()

	k.logger.Infof("Consuming audit records from Kafka topic %s as group %s", k.topic, k.group)
	groupHandler := &consumerGroupHandler{
		handler: handler,
		logger:  k.logger,
	}
	for {
		if err := consumerGroup.Consume(ctx, []string{k.topic}, groupHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return errors.Errorf("Kafka consumer group %s failed: %v", k.group, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (k *kafkaSource) Stop() error {
	if k.consumerGroup == nil {
		return nil
	}
	return k.consumerGroup.Close()
}

type consumerGroupHandler struct {
	handler eventsource.Handler
	logger  *logging.Logger
}

func (c *consumerGroupHandler) Setup(
	_ sarama.ConsumerGroupSession,
) error {

	return nil
}

func (c *consumerGroupHandler) Cleanup(
	_ sarama.ConsumerGroupSession,
) error {

	return nil
}

func (c *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim,
) error {

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handler(session.Context(), message.Value); err != nil {
				return errors.Errorf(
					"record at offset %d of %s/%d failed: %v", message.Offset, message.Topic, message.Partition, err,
				)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
