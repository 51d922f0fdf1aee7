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

package natsclient

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/version"
)

// Properties names the configuration properties of one NATS
// connection section, e.g. workqueue.nats
type Properties struct {
	Address                string
	Authorization          string
	UserinfoUsername       string
	UserinfoPassword       string
	CredentialsCertificate string
	CredentialsSeeds       string
	Jwt                    string
	JwtSeed                string
	Timeout                string
}

// Connect opens a connection which reconnects forever. The
// authorization type decides which credentials are passed.
func Connect(
	c *config.Config, properties Properties,
) (*nats.Conn, error) {

	address := config.GetOrDefault(c, properties.Address, nats.DefaultURL)
	authorization := config.GetOrDefault(c, properties.Authorization, config.UserInfo)
	timeout := config.GetOrDefault(c, properties.Timeout, nats.DefaultTimeout)

	var authOption nats.Option
	switch authorization {
	case config.UserInfo:
		username := config.GetOrDefault(c, properties.UserinfoUsername, "")
		password := config.GetOrDefault(c, properties.UserinfoPassword, "")
		authOption = nats.UserInfo(username, password)
	case config.Credentials:
		certificate := config.GetOrDefault(c, properties.CredentialsCertificate, "")
		seeds := config.GetOrDefault(c, properties.CredentialsSeeds, []string{})
		authOption = nats.UserCredentials(certificate, seeds...)
	case config.Jwt:
		jwt := config.GetOrDefault(c, properties.Jwt, "")
		seed := config.GetOrDefault(c, properties.JwtSeed, "")
		authOption = nats.UserJWTAndSeed(jwt, seed)
	default:
		return nil, errors.Errorf("NATS AuthorizationType '%s' doesn't exist", authorization)
	}

	return ConnectWithOptions(address, authOption, nats.Timeout(timeout))
}

func ConnectWithOptions(
	address string, options ...nats.Option,
) (*nats.Conn, error) {

	options = append(
		options,
		nats.Name(version.BinName),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second*10),
		nats.ReconnectBufSize(1024*1024),
		nats.MaxReconnects(-1),
	)

	conn, err := nats.Connect(address, options...)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return conn, nil
}
