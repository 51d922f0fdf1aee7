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

package awskinesis

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/awsclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/internal/waiting"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
)

const (
	DefaultIterator     = kinesis.ShardIteratorTypeLatest
	DefaultPollInterval = time.Second

	maxRecords = 100
)

func init() {
	eventsource.RegisterSource(config.AwsKinesisSource, newAwsKinesisSource)
}

// awsKinesisSource polls every shard of a stream in its own
// goroutine. Records of one shard are handled in order, a failed
// record is read again from its sequence number after the poll
// interval. Shards created by resharding after start are not
// followed.
type awsKinesisSource struct {
	streamName   string
	iterator     string
	pollInterval time.Duration
	awsKinesis   kinesisiface.KinesisAPI
	logger       *logging.Logger
}

func newAwsKinesisSource(
	c *config.Config,
) (eventsource.Source, error) {

	streamName := config.GetOrDefault(c, config.PropertyKinesisSourceStreamName, "")
	if streamName == "" {
		return nil, errors.Errorf("AWS Kinesis source needs the stream name to be configured")
	}

	awsSession, err := awsclient.NewSession(c, awsclient.Properties{
		Region:          config.PropertyKinesisSourceAwsRegion,
		Endpoint:        config.PropertyKinesisSourceAwsEndpoint,
		AccessKeyId:     config.PropertyKinesisSourceAwsAccessKeyId,
		SecretAccessKey: config.PropertyKinesisSourceAwsSecretAccessKey,
		SessionToken:    config.PropertyKinesisSourceAwsSessionToken,
	})
	if err != nil {
		return nil, err
	}

	return NewAwsKinesisSource(
		kinesis.New(awsSession), streamName,
		config.GetOrDefault(c, config.PropertyKinesisSourceStreamIterator, DefaultIterator),
		config.GetOrDefault(c, config.PropertyKinesisSourcePollInterval, DefaultPollInterval),
	)
}

func NewAwsKinesisSource(
	awsKinesis kinesisiface.KinesisAPI, streamName, iterator string, pollInterval time.Duration,
) (eventsource.Source, error) {

	switch iterator {
	case kinesis.ShardIteratorTypeLatest, kinesis.ShardIteratorTypeTrimHorizon:
	default:
		return nil, errors.Errorf(
			"AWS Kinesis source supports iterators %s and %s, got '%s'",
			kinesis.ShardIteratorTypeLatest, kinesis.ShardIteratorTypeTrimHorizon, iterator,
		)
	}

	logger, err := logging.NewLogger("AwsKinesisSource")
	if err != nil {
		return nil, err
	}

	return &awsKinesisSource{
		streamName:   streamName,
		iterator:     iterator,
		pollInterval: pollInterval,
		awsKinesis:   awsKinesis,
		logger:       logger,
	}, nil
}

func (a *awsKinesisSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	shards, err := a.listShards(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if len(shards) == 0 {
		return errors.Errorf("AWS Kinesis stream %s has no shards", a.streamName)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failureMutex sync.Mutex
	var failure error

	shutdownAwaiter := waiting.NewMultiShutdownAwaiter(uint(len(shards)))
	for slot, shardId := range shards {
		go func(slot uint, shardId string) {
			defer shutdownAwaiter.SignalDone()
			if err := a.consumeShard(ctx, slot, shardId, shutdownAwaiter, handler); err != nil {
				failureMutex.Lock()
				if failure == nil {
					failure = err
				}
				failureMutex.Unlock()
				cancel()
			}
		}(uint(slot), shardId)
	}

	a.logger.Infof("Consuming audit records from %d shard(s) of Kinesis stream %s", len(shards), a.streamName)
	go func() {
		<-ctx.Done()
		shutdownAwaiter.SignalShutdown()
	}()
	shutdownAwaiter.AwaitDone()

	failureMutex.Lock()
	defer failureMutex.Unlock()
	return failure
}

func (a *awsKinesisSource) Stop() error {
	return nil
}

func (a *awsKinesisSource) listShards(
	ctx context.Context,
) ([]string, error) {

	shards := make([]string, 0)
	input := &kinesis.ListShardsInput{
		StreamName: aws.String(a.streamName),
	}
	for {
		output, err := a.awsKinesis.ListShardsWithContext(ctx, input)
		if err != nil {
			return nil, errors.Errorf("failed to list shards of Kinesis stream %s: %v", a.streamName, err)
		}
		for _, shard := range output.Shards {
			// closed parent shards are drained and have an end sequence number
			if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
				continue
			}
			shards = append(shards, aws.StringValue(shard.ShardId))
		}
		if output.NextToken == nil {
			return shards, nil
		}
		input = &kinesis.ListShardsInput{
			NextToken: output.NextToken,
		}
	}
}

func (a *awsKinesisSource) consumeShard(
	ctx context.Context, slot uint, shardId string,
	shutdownAwaiter *waiting.MultiShutdownAwaiter, handler eventsource.Handler,
) error {

	iterator, err := a.shardIterator(ctx, shardId, a.iterator, nil)
	if err != nil {
		return err
	}

	for iterator != nil {
		output, err := a.awsKinesis.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
			ShardIterator: iterator,
			Limit:         aws.Int64(maxRecords),
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Errorf("failed to read shard %s: %v", shardId, err)
		}

		iterator = output.NextShardIterator
		for _, record := range output.Records {
			if err := handler(ctx, record.Data); err != nil {
				a.logger.Warnf(
					"Record %s of shard %s failed and will be read again: %v",
					aws.StringValue(record.SequenceNumber), shardId, err,
				)
				iterator, err = a.shardIterator(
					ctx, shardId, kinesis.ShardIteratorTypeAtSequenceNumber, record.SequenceNumber,
				)
				if err != nil {
					return err
				}
				break
			}
		}

		select {
		case <-shutdownAwaiter.AwaitShutdownChan(slot):
			return nil
		case <-time.After(a.pollInterval):
		}
	}

	a.logger.Infof("Shard %s of Kinesis stream %s is closed", shardId, a.streamName)
	return nil
}

func (a *awsKinesisSource) shardIterator(
	ctx context.Context, shardId, iteratorType string, sequenceNumber *string,
) (*string, error) {

	output, err := a.awsKinesis.GetShardIteratorWithContext(ctx, &kinesis.GetShardIteratorInput{
		StreamName:             aws.String(a.streamName),
		ShardId:                aws.String(shardId),
		ShardIteratorType:      aws.String(iteratorType),
		StartingSequenceNumber: sequenceNumber,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, errors.Errorf("failed to get %s iterator for shard %s: %v", iteratorType, shardId, err)
	}
	return output.ShardIterator, nil
}
