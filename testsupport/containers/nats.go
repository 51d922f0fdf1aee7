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

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupNatsContainer starts a JetStream enabled NATS server and
// returns the container and its nats:// url
func SetupNatsContainer() (testcontainers.Container, string, error) {
	logs, err := withContainerLogs("testcontainers-nats")
	if err != nil {
		return nil, "", err
	}

	request := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(time.Minute),
		},
		Started: true,
	}
	if err := logs.Customize(&request); err != nil {
		return nil, "", err
	}

	container, err := testcontainers.GenericContainer(context.Background(), request)
	if err != nil {
		return nil, "", err
	}

	host, port, err := endpoint(container, "4222/tcp")
	if err != nil {
		return nil, "", err
	}
	return container, fmt.Sprintf("nats://%s:%d", host, port), nil
}
