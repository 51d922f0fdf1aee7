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

package awssqs

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/awsclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
)

const (
	DefaultPollWait = time.Second * 20

	maxMessages = 10
)

func init() {
	eventsource.RegisterSource(config.AwsSqsSource, newAwsSqsSource)
}

// awsSqsSource consumes audit records from an SQS queue, usually
// the target of an EventBridge rule. Messages are deleted after the
// handler succeeded, failed ones reappear after the queue's
// visibility timeout.
type awsSqsSource struct {
	queueUrl string
	pollWait time.Duration
	awsSqs   sqsiface.SQSAPI
	logger   *logging.Logger
}

func newAwsSqsSource(
	c *config.Config,
) (eventsource.Source, error) {

	queueUrl := config.GetOrDefault(c, config.PropertySqsSourceQueueUrl, "")
	if queueUrl == "" {
		return nil, errors.Errorf("AWS SQS source needs the queue url to be configured")
	}

	awsSession, err := awsclient.NewSession(c, awsclient.Properties{
		Region:          config.PropertySqsSourceAwsRegion,
		Endpoint:        config.PropertySqsSourceAwsEndpoint,
		AccessKeyId:     config.PropertySqsSourceAwsAccessKeyId,
		SecretAccessKey: config.PropertySqsSourceAwsSecretAccessKey,
		SessionToken:    config.PropertySqsSourceAwsSessionToken,
	})
	if err != nil {
		return nil, err
	}

	return NewAwsSqsSource(
		sqs.New(awsSession), queueUrl,
		config.GetOrDefault(c, config.PropertySqsSourcePollWait, DefaultPollWait),
	)
}

func NewAwsSqsSource(
	awsSqs sqsiface.SQSAPI, queueUrl string, pollWait time.Duration,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("AwsSqsSource")
	if err != nil {
		return nil, err
	}

	return &awsSqsSource{
		queueUrl: queueUrl,
		pollWait: pollWait,
		awsSqs:   awsSqs,
		logger:   logger,
	}, nil
}

func (a *awsSqsSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	a.logger.Infof("Consuming audit records from SQS queue %s", a.queueUrl)
	for {
		output, err := a.awsSqs.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(a.queueUrl),
			MaxNumberOfMessages: aws.Int64(maxMessages),
			WaitTimeSeconds:     aws.Int64(int64(a.pollWait.Seconds())),
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Errorf("failed to receive from SQS queue %s: %v", a.queueUrl, err)
		}

		for _, message := range output.Messages {
			if err := handler(ctx, []byte(aws.StringValue(message.Body))); err != nil {
				a.logger.Warnf(
					"Message %s failed and will be redelivered: %v", aws.StringValue(message.MessageId), err,
				)
				continue
			}

			if _, err := a.awsSqs.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(a.queueUrl),
				ReceiptHandle: message.ReceiptHandle,
			}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Warnf("Failed to delete message %s: %v", aws.StringValue(message.MessageId), err)
			}
		}
	}
}

func (a *awsSqsSource) Stop() error {
	return nil
}
