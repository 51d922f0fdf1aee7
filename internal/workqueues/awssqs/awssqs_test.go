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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/containers"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/queuecontract"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

const awsRegion = "us-east-1"

func Test_AWS_SQS_Config_Loading(
	t *testing.T,
) {

	c := &config.Config{
		WorkQueue: config.WorkQueueConfig{
			Type:              config.AwsSqsWorkQueue,
			VisibilityTimeout: time.Minute * 10,
			Sqs: config.AwsSqsConfig{
				Queue: config.AwsSqsQueueConfig{
					Name:   "ddl-queue.fifo",
					Create: lo.ToPtr(true),
				},
				Poll: config.PollConfig{
					Wait: time.Second * 5,
				},
				Aws: config.AwsConnectionConfig{
					Region: lo.ToPtr(awsRegion),
				},
			},
		},
	}

	queue, err := newAwsSqsWorkQueue(c)
	require.NoError(t, err)

	sqsQueue := queue.(*awsSqsWorkQueue)
	assert.Equal(t, "ddl-queue.fifo", sqsQueue.queueName)
	assert.True(t, sqsQueue.create)
	assert.True(t, sqsQueue.fifo)
	assert.Equal(t, time.Second*5, sqsQueue.pollWait)
	assert.Equal(t, time.Minute*10, sqsQueue.visibilityTimeout)
	assert.Equal(t, awsRegion, *sqsQueue.awsSqs.Config.Region)
}

func Test_AWS_SQS_Default_Queue(
	t *testing.T,
) {

	queue, err := newAwsSqsWorkQueue(&config.Config{})
	require.NoError(t, err)

	sqsQueue := queue.(*awsSqsWorkQueue)
	assert.Equal(t, DefaultQueueName, sqsQueue.queueName)
	assert.False(t, sqsQueue.fifo)
	assert.Equal(t, workqueue.DefaultVisibilityTimeout, sqsQueue.visibilityTimeout)
}

func Test_Seconds_Round_Up(
	t *testing.T,
) {

	assert.Equal(t, int64(1), seconds(time.Millisecond*200))
	assert.Equal(t, int64(1800), seconds(workqueue.DefaultVisibilityTimeout))
	assert.Equal(t, int64(3), seconds(time.Millisecond*2001))
}

type AwsSqsWorkQueueTestSuite struct {
	queuecontract.WorkQueueSuite
	container testcontainers.Container
	awsSqs    *sqs.SQS
}

func TestAwsSqsWorkQueueTestSuite(
	t *testing.T,
) {

	if testing.Short() {
		t.Skip("skipping container based test in short mode")
	}

	s := &AwsSqsWorkQueueTestSuite{}
	s.VisibilityTimeout = time.Second * 2
	s.Capabilities = queuecontract.Capabilities{
		SourceEventId: true,
	}
	s.NewWorkQueue = func() (workqueue.WorkQueue, error) {
		queueName := "ddl-" + lo.RandomString(12, lo.AlphanumericCharset)
		return NewAwsSqsWorkQueue(s.awsSqs, "", queueName, true, 0, s.VisibilityTimeout)
	}
	suite.Run(t, s)
}

func (s *AwsSqsWorkQueueTestSuite) SetupSuite() {
	container, endpoint, err := containers.SetupLocalStackWithSQS()
	s.Require().NoError(err)
	s.container = container

	awsSession, err := session.NewSession(
		aws.NewConfig().
			WithEndpoint(endpoint).
			WithRegion(awsRegion).
			WithCredentials(credentials.NewStaticCredentials("test", "test", "")),
	)
	s.Require().NoError(err)
	s.awsSqs = sqs.New(awsSession)
}

func (s *AwsSqsWorkQueueTestSuite) TearDownSuite() {
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *AwsSqsWorkQueueTestSuite) Test_Fifo_Queue_Does_Not_Deduplicate() {
	ctx := context.Background()
	queueName := "ddl-" + lo.RandomString(12, lo.AlphanumericCharset) + ".fifo"

	queue, err := NewAwsSqsWorkQueue(s.awsSqs, "", queueName, true, 0, s.VisibilityTimeout)
	s.Require().NoError(err)
	s.Require().NoError(queue.Start())

	item := workitem.WorkItem{
		ClusterIdentifier: "orders-db",
		EnqueuedAt:        time.Date(2024, 3, 11, 9, 15, 30, 0, time.UTC),
	}
	s.Require().NoError(queue.Enqueue(ctx, item))
	s.Require().NoError(queue.Enqueue(ctx, item))

	s.Eventually(func() bool {
		depth, err := queue.Depth(ctx)
		return err == nil && depth == 2
	}, time.Second*10, time.Millisecond*100)
}

func (s *AwsSqsWorkQueueTestSuite) Test_Created_Queue_Visibility_Timeout() {
	queueUrl := s.Queue().(*awsSqsWorkQueue).queueUrl

	output, err := s.awsSqs.GetQueueAttributes(&sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueUrl),
		AttributeNames: aws.StringSlice([]string{sqs.QueueAttributeNameVisibilityTimeout}),
	})
	s.Require().NoError(err)
	s.Equal("2", aws.StringValue(output.Attributes[sqs.QueueAttributeNameVisibilityTimeout]))
}
