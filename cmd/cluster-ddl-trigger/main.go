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

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	_ "github.com/noctarius/cluster-ddl-trigger/internal"
	"github.com/noctarius/cluster-ddl-trigger/internal/pipeline"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/internal/sysconfig"
	spiconfig "github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/version"
	"github.com/urfave/cli"
)

const configEnvVar = "CLUSTER_DDL_TRIGGER_CONFIG"

var (
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool
	profiling         bool
)

func main() {
	app := &cli.App{
		Name:  version.BinName,
		Usage: "Turns RDS cluster creation audit records into DDL work items",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config,c",
				Value:       "",
				Usage:       "Load configuration from `FILE`",
				EnvVar:      configEnvVar,
				Destination: &configurationFile,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Show verbose output",
				Destination: &verbose,
			},
			&cli.BoolFlag{
				Name:        "caller",
				Usage:       "Collect caller information for log messages",
				Destination: &withCaller,
			},
			&cli.BoolFlag{
				Name:        "log-to-stderr",
				Usage:       "Redirects logging output to stderr, always on for queue commands",
				Destination: &logToStdErr,
			},
			&cli.BoolFlag{
				Name:        "version",
				Usage:       "Prints the version and exits",
				Destination: &versionOnly,
			},
			&cli.BoolFlag{
				Name:        "profiling",
				Usage:       "Enables the Go profiler",
				Destination: &profiling,
			},
		},
		Action: run,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "Runs the pipeline from the configured event source to the work queue (default)",
				Action: run,
			},
			queueCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(*cli.Context) error {
	fmt.Fprintln(os.Stderr, version.BuildInfo())
	if versionOnly {
		return nil
	}

	if profiling {
		cpuProfile, err := os.Create("cpu.prof")
		if err != nil {
			return supporting.AdaptError(err, supporting.ExitCodeGeneric)
		}
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			return supporting.AdaptError(err, supporting.ExitCodeGeneric)
		}
		defer pprof.StopCPUProfile()
	}

	systemConfig, err := loadSystemConfig(logToStdErr)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(systemConfig)
	if err != nil {
		return supporting.AdaptErrorWithMessage(err, "Pipeline couldn't be created", supporting.ExitCodeStartup)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	if err := p.Start(); err != nil {
		return supporting.AdaptErrorWithMessage(err, "Pipeline couldn't be started", supporting.ExitCodeStartup)
	}

	select {
	case <-signals:
	case <-p.Finished():
	}

	if err := p.Stop(); err != nil {
		return supporting.AdaptError(err, supporting.ExitCodeShutdown)
	}
	return logging.CloseLogging()
}

// loadSystemConfig reads the configuration file, if any, and
// initializes logging. Every property may come from the environment
// alone, so a missing file isn't an error.
func loadSystemConfig(
	logToStdErr bool,
) (*sysconfig.SystemConfig, error) {

	logging.WithCaller = withCaller
	logging.WithVerbose = verbose

	config := &spiconfig.Config{}
	if configurationFile != "" {
		fmt.Fprintf(os.Stderr, "Loading configuration file: %s\n", configurationFile)
		c, err := spiconfig.LoadFile(configurationFile)
		if err != nil {
			return nil, supporting.AdaptErrorWithMessage(
				err, "Configuration file couldn't be loaded", supporting.ExitCodeConfiguration,
			)
		}
		config = c
	}

	if err := logging.InitializeLogging(config, logToStdErr); err != nil {
		return nil, err
	}
	return sysconfig.NewSystemConfig(config), nil
}
