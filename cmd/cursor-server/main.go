// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/tinycursor/pkg/logutil"
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/pingcap-incubator/tinycursor/server/api"
	"github.com/pingcap-incubator/tinycursor/server/config"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.NewConfig()
	err := cfg.Parse(args)
	if cfg.Version {
		server.PrintServerInfo()
		return 0
	}
	if errors.Cause(err) == flag.ErrHelp {
		return 0
	}
	if err != nil {
		log.Error("invalid command line", zap.Error(err))
		return 2
	}
	if cfg.ConfigCheck {
		server.PrintConfigCheckMsg(cfg)
		return 0
	}

	if err := cfg.SetupLogger(); err != nil {
		log.Error("cannot set up logger", zap.Error(err))
		return 1
	}
	log.ReplaceGlobals(cfg.GetZapLogger(), cfg.GetZapLogProperties())
	defer log.Sync()
	defer logutil.LogPanic()

	server.LogServerInfo()
	for _, msg := range cfg.WarningMsgs {
		log.Warn(msg)
	}

	svr, err := server.CreateServer(cfg, api.NewHandler)
	if err != nil {
		log.Error("cannot create cursor server", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := svr.Run(ctx); err != nil {
		log.Error("cannot start cursor server", zap.Error(err))
		return 1
	}
	log.Info("cursor server started", zap.String("status-addr", svr.GetAddr()))

	<-ctx.Done()
	log.Info("shutting down cursor server")
	svr.Close()
	return 0
}
