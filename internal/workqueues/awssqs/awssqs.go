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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/awsclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

const (
	DefaultQueueName = "RDS_DDL_Detection_Queue"

	attributeSourceEventId = "sourceEventId"
)

func init() {
	workqueue.RegisterWorkQueue(config.AwsSqsWorkQueue, newAwsSqsWorkQueue)
}

type awsSqsWorkQueue struct {
	queueUrl          string
	queueName         string
	create            bool
	fifo              bool
	pollWait          time.Duration
	visibilityTimeout time.Duration
	awsSqs            *sqs.SQS
	logger            *logging.Logger
}

func newAwsSqsWorkQueue(
	c *config.Config,
) (workqueue.WorkQueue, error) {

	queueUrl := config.GetOrDefault(c, config.PropertySqsWorkQueueUrl, "")
	queueName := config.GetOrDefault(c, config.PropertySqsWorkQueueName, DefaultQueueName)
	create := config.GetOrDefault(c, config.PropertySqsWorkQueueCreate, false)
	if queueUrl == "" && queueName == "" {
		return nil, errors.Errorf("AWS SQS work queue needs the queue url or name to be configured")
	}

	awsSession, err := awsclient.NewSession(c, awsclient.Properties{
		Region:          config.PropertySqsWorkQueueAwsRegion,
		Endpoint:        config.PropertySqsWorkQueueAwsEndpoint,
		AccessKeyId:     config.PropertySqsWorkQueueAwsAccessKeyId,
		SecretAccessKey: config.PropertySqsWorkQueueAwsSecretAccessKey,
		SessionToken:    config.PropertySqsWorkQueueAwsSessionToken,
	})
	if err != nil {
		return nil, err
	}

	return NewAwsSqsWorkQueue(
		sqs.New(awsSession), queueUrl, queueName, create,
		config.GetOrDefault(c, config.PropertySqsWorkQueuePollWait, time.Duration(0)),
		workqueue.VisibilityTimeout(c),
	)
}

// NewAwsSqsWorkQueue creates a work queue on top of an SQS queue.
// If queueUrl is empty the url is resolved from queueName on start,
// creating the queue when create is set.
func NewAwsSqsWorkQueue(
	awsSqs *sqs.SQS, queueUrl, queueName string, create bool,
	pollWait, visibilityTimeout time.Duration,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("AwsSqsWorkQueue")
	if err != nil {
		return nil, err
	}

	fifo := strings.HasSuffix(queueName, ".fifo") || strings.HasSuffix(queueUrl, ".fifo")
	return &awsSqsWorkQueue{
		queueUrl:          queueUrl,
		queueName:         queueName,
		create:            create,
		fifo:              fifo,
		pollWait:          pollWait,
		visibilityTimeout: visibilityTimeout,
		awsSqs:            awsSqs,
		logger:            logger,
	}, nil
}

func (a *awsSqsWorkQueue) Start() error {
	if a.queueUrl != "" {
		a.logger.Infof("Using SQS queue %s", a.queueUrl)
		return nil
	}

	if a.create {
		attributes := map[string]*string{
			sqs.QueueAttributeNameVisibilityTimeout: aws.String(strconv.FormatInt(seconds(a.visibilityTimeout), 10)),
		}
		if a.fifo {
			attributes[sqs.QueueAttributeNameFifoQueue] = aws.String("true")
		}

		output, err := a.awsSqs.CreateQueue(&sqs.CreateQueueInput{
			QueueName:  aws.String(a.queueName),
			Attributes: attributes,
		})
		if err != nil {
			return errors.Errorf("failed to create SQS queue '%s': %v", a.queueName, err)
		}
		a.queueUrl = aws.StringValue(output.QueueUrl)
		a.logger.Infof("Created SQS queue %s", a.queueUrl)
		return nil
	}

	output, err := a.awsSqs.GetQueueUrl(&sqs.GetQueueUrlInput{
		QueueName: aws.String(a.queueName),
	})
	if err != nil {
		return errors.Errorf("failed to resolve SQS queue '%s': %v", a.queueName, err)
	}
	a.queueUrl = aws.StringValue(output.QueueUrl)
	a.logger.Infof("Using SQS queue %s", a.queueUrl)
	return nil
}

func (a *awsSqsWorkQueue) Stop() error {
	return nil
}

func (a *awsSqsWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	body, err := item.MarshalBody()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	input := &sqs.SendMessageInput{
		DelaySeconds: aws.Int64(0),
		MessageBody:  aws.String(string(body)),
		QueueUrl:     aws.String(a.queueUrl),
	}

	if item.SourceEventID != "" {
		input.MessageAttributes = map[string]*sqs.MessageAttributeValue{
			attributeSourceEventId: {
				DataType:    aws.String("String"),
				StringValue: aws.String(item.SourceEventID),
			},
		}
	}

	if a.fifo {
		// A fresh id per message, the queue must never deduplicate
		// repeated deliveries of the same event
		deduplicationId, err := uuid.GenerateUUID()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		input.MessageGroupId = aws.String(item.ClusterIdentifier)
		input.MessageDeduplicationId = aws.String(deduplicationId)
	}

	_, err = a.awsSqs.SendMessageWithContext(ctx, input)
	return err
}

func (a *awsSqsWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if visibilityTimeout <= 0 {
		return nil, errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	output, err := a.awsSqs.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(a.queueUrl),
		MaxNumberOfMessages:   aws.Int64(1),
		VisibilityTimeout:     aws.Int64(seconds(visibilityTimeout)),
		WaitTimeSeconds:       aws.Int64(int64(a.pollWait.Seconds())),
		AttributeNames:        aws.StringSlice([]string{sqs.MessageSystemAttributeNameApproximateReceiveCount}),
		MessageAttributeNames: aws.StringSlice([]string{attributeSourceEventId}),
	})
	if err != nil {
		return nil, err
	}

	if len(output.Messages) == 0 {
		return nil, workqueue.ErrNoWorkItem
	}

	receivedAt := time.Now()
	message := output.Messages[0]
	item, err := workitem.UnmarshalBody([]byte(aws.StringValue(message.Body)))
	if err != nil {
		// Not ours to interpret, the message stays for inspection
		return nil, errors.Errorf("message %s has an unexpected body: %v", aws.StringValue(message.MessageId), err)
	}

	item.ID = aws.StringValue(message.MessageId)
	if receiveCount, present := message.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]; present {
		if count, err := strconv.ParseUint(aws.StringValue(receiveCount), 10, 32); err == nil {
			item.AttemptCount = uint32(count)
		}
	}
	if attribute, present := message.MessageAttributes[attributeSourceEventId]; present {
		item.SourceEventID = aws.StringValue(attribute.StringValue)
	}

	return &workqueue.Lease{
		Item:      item,
		Token:     aws.StringValue(message.ReceiptHandle),
		ExpiresAt: receivedAt.Add(time.Duration(seconds(visibilityTimeout)) * time.Second),
	}, nil
}

// Acknowledge deletes the message. SQS accepts stale receipt
// handles, hence an acknowledge after redelivery still removes
// the item.
func (a *awsSqsWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	_, err := a.awsSqs.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(a.queueUrl),
		ReceiptHandle: aws.String(lease.Token),
	})
	if err != nil && isErrorCode(err, sqs.ErrCodeReceiptHandleIsInvalid) {
		a.logger.Debugf("Message %s was removed already", lease.Item.ID)
		return nil
	}
	return err
}

func (a *awsSqsWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if visibilityTimeout <= 0 {
		return errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	// A message past its window may be in flight with someone else
	if lease.Expired(time.Now()) {
		return workqueue.ErrLeaseExpired
	}

	_, err := a.awsSqs.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(a.queueUrl),
		ReceiptHandle:     aws.String(lease.Token),
		VisibilityTimeout: aws.Int64(seconds(visibilityTimeout)),
	})
	if err != nil {
		if isErrorCode(err, sqs.ErrCodeReceiptHandleIsInvalid) || isErrorCode(err, sqs.ErrCodeMessageNotInflight) {
			return workqueue.ErrLeaseExpired
		}
		return err
	}

	lease.ExpiresAt = time.Now().Add(time.Duration(seconds(visibilityTimeout)) * time.Second)
	return nil
}

func (a *awsSqsWorkQueue) Depth(
	ctx context.Context,
) (int, error) {

	output, err := a.awsSqs.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(a.queueUrl),
		AttributeNames: aws.StringSlice([]string{
			sqs.QueueAttributeNameApproximateNumberOfMessages,
			sqs.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		}),
	})
	if err != nil {
		return 0, err
	}

	depth := 0
	for _, value := range output.Attributes {
		count, err := strconv.Atoi(aws.StringValue(value))
		if err != nil {
			return 0, errors.Wrap(err, 0)
		}
		depth += count
	}
	return depth, nil
}

// seconds rounds up, SQS only knows whole seconds
func seconds(
	d time.Duration,
) int64 {

	return int64(math.Ceil(d.Seconds()))
}

func isErrorCode(
	err error, code string,
) bool {

	var awsErr awserr.Error
	return errors.As(err, &awsErr) && awsErr.Code() == code
}
