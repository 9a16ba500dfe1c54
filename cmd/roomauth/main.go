// Copyright 2024 New Vector Ltd.
// Copyright 2017 Vector Creations Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Command roomauth wires the state snapshot store, the Room Input
// Pipeline and this module's ambient stack (config, logging) into a
// single long-running process. It has no HTTP surface or other transport
// of its own, and it does not expose the *internal.RoomInputAPI it
// builds; events reach a pipeline only from code that calls
// roomserver.NewRoomInputAPI itself.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ike20013/roomauth/external/caching"
	extlog "github.com/ike20013/roomauth/external/log"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver"
	"github.com/ike20013/roomauth/setup/config"
	"github.com/ike20013/roomauth/setup/jetstream"
	"github.com/ike20013/roomauth/setup/process"
)

func main() {
	configPath := flag.String("config", "roomauth.yaml", "path to the configuration file")
	logDir := flag.String("log-dir", "", "directory for rotating on-disk logs (empty disables)")
	sentryDSN := flag.String("sentry-dsn", "", "Sentry DSN for error reporting (empty disables)")
	enableMetrics := flag.Bool("metrics", true, "register Prometheus collectors")
	flag.Parse()

	if err := extlog.Setup(*logDir, *sentryDSN); err != nil {
		logrus.WithError(err).Fatal("roomauth: failed to set up logging")
	}
	defer extlog.Flush(5 * time.Second)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("roomauth: failed to load configuration")
	}

	processCtx := process.NewProcessContext()
	cm := sqlutil.NewConnectionManager(processCtx.Context())

	caches, err := caching.NewRoomServerCaches(10000)
	if err != nil {
		logrus.WithError(err).Fatal("roomauth: failed to construct caches")
	}

	var natsInstance jetstream.NATSInstance
	roomserver.NewRoomInputAPI(processCtx, cfg, cm, &natsInstance, caches, nil, *enableMetrics)

	logrus.WithField("server_name", cfg.Global.ServerName).Info("roomauth: room input pipeline ready")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	processCtx.Shutdown()
	processCtx.WaitForComponentsToFinish()
	os.Exit(0)
}
