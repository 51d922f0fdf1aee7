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

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

const localStackImage = "localstack/localstack:3.0.1"

func setupLocalStack(
	services string, env map[string]string,
) (*localstack.LocalStackContainer, string, error) {

	logs, err := withContainerLogs("testcontainers-localstack")
	if err != nil {
		return nil, "", err
	}

	environment := map[string]string{
		"EAGER_SERVICE_LOADING": "1",
		"SERVICES":              services,
	}
	for key, value := range env {
		environment[key] = value
	}

	container, err := localstack.Run(context.Background(), localStackImage,
		testcontainers.WithEnv(environment), logs,
	)
	if err != nil {
		return nil, "", err
	}

	host, port, err := endpoint(container, "4566/tcp")
	if err != nil {
		return nil, "", err
	}
	return container, fmt.Sprintf("http://%s:%d", host, port), nil
}

// SetupLocalStackWithSQS returns the container and its endpoint
func SetupLocalStackWithSQS() (testcontainers.Container, string, error) {
	container, endpoint, err := setupLocalStack("sqs", map[string]string{
		"SQS_ENDPOINT_STRATEGY":          "path",
		"SQS_DISABLE_CLOUDWATCH_METRICS": "1",
	})
	if err != nil {
		return nil, "", err
	}
	return container, endpoint, nil
}

// SetupLocalStackWithKinesis returns the container and its endpoint
func SetupLocalStackWithKinesis() (testcontainers.Container, string, error) {
	container, endpoint, err := setupLocalStack("kinesis", nil)
	if err != nil {
		return nil, "", err
	}
	return container, endpoint, nil
}
