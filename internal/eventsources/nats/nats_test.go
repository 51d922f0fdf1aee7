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
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/natsclient"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/containers"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

type NatsSourceTestSuite struct {
	suite.Suite
	container testcontainers.Container
	address   string
}

func TestNatsSourceTestSuite(
	t *testing.T,
) {

	if testing.Short() {
		t.Skip("skipping container based test in short mode")
	}
	suite.Run(t, new(NatsSourceTestSuite))
}

func (s *NatsSourceTestSuite) SetupSuite() {
	container, address, err := containers.SetupNatsContainer()
	s.Require().NoError(err)
	s.container = container
	s.address = address
}

func (s *NatsSourceTestSuite) TearDownSuite() {
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *NatsSourceTestSuite) Test_Failed_Records_Are_Redelivered() {
	name := lo.RandomString(8, lo.UpperCaseLettersCharset)
	stream := "AUDIT_" + name
	subject := "audit." + name

	conn, err := natsclient.ConnectWithOptions(s.address, nats.Timeout(time.Second*5))
	s.Require().NoError(err)

	jetStreamContext, err := conn.JetStream()
	s.Require().NoError(err)
	_, err = jetStreamContext.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
	})
	s.Require().NoError(err)

	for _, record := range []string{"r1", "r2"} {
		_, err := jetStreamContext.Publish(subject, []byte(record))
		s.Require().NoError(err)
	}

	source, err := NewNatsSource(conn, stream, subject, "trigger", time.Millisecond*200)
	s.Require().NoError(err)

	var mutex sync.Mutex
	failures := 1
	received := make([]string, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- source.Run(ctx, func(_ context.Context, data []byte) error {
			mutex.Lock()
			defer mutex.Unlock()
			if string(data) == "r2" && failures > 0 {
				failures--
				return errors.Errorf("enqueue failed")
			}
			received = append(received, string(data))
			return nil
		})
	}()

	s.Eventually(func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(received) == 2
	}, time.Second*10, time.Millisecond*50)

	cancel()
	s.NoError(<-done)
	s.NoError(source.Stop())
	s.ElementsMatch([]string{"r1", "r2"}, received)
}
