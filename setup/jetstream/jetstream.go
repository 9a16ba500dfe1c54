// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package jetstream wraps the NATS JetStream connection this module
// publishes authorization verdicts on, so that callers needing a
// publisher don't each have to know how to dial and configure NATS.
package jetstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ike20013/roomauth/setup/config"
	"github.com/ike20013/roomauth/setup/process"
)

// Topic names this module publishes authorization verdicts under.
const (
	// TopicOutputRoomEvent carries one message per processed room event,
	// recording the engine's allow/deny verdict.
	TopicOutputRoomEvent = "OutputRoomEvent"
)

// NATSInstance lazily starts an embedded NATS server with JetStream
// enabled the first time Prepare is called with an empty Addresses list
// (useful for tests and single-process deployments), or dials the
// configured external addresses otherwise.
type NATSInstance struct {
	embedded *server.Server
}

// Prepare returns a connected nats.JetStreamContext and the underlying
// *nats.Conn for cfg, starting an embedded server on first use when no
// external addresses are configured. The connection is closed when
// processCtx shuts down.
func (n *NATSInstance) Prepare(processCtx *process.ProcessContext, cfg *config.JetStream) (nats.JetStreamContext, *nats.Conn) {
	var nc *nats.Conn
	var err error

	if len(cfg.Addresses) == 0 {
		nc, err = n.connectEmbedded(cfg)
	} else {
		nc, err = nats.Connect(strings.Join(cfg.Addresses, ","))
	}
	if err != nil {
		logrus.WithError(err).Panic("jetstream: failed to connect to NATS")
	}

	js, err := nc.JetStream()
	if err != nil {
		logrus.WithError(err).Panic("jetstream: failed to acquire JetStream context")
	}

	processCtx.ComponentStarted()
	go func() {
		<-processCtx.Context().Done()
		nc.Close()
		if n.embedded != nil {
			n.embedded.Shutdown()
		}
		processCtx.ComponentFinished()
	}()

	return js, nc
}

func (n *NATSInstance) connectEmbedded(cfg *config.JetStream) (*nats.Conn, error) {
	if n.embedded == nil {
		opts := &server.Options{
			JetStream: true,
			StoreDir:  string(cfg.StoragePath),
			NoLog:     cfg.NoLog,
		}
		srv, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("jetstream: embedded server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("jetstream: embedded server did not become ready")
		}
		n.embedded = srv
	}
	return nats.Connect(n.embedded.ClientURL())
}

// Header keys producers set on published messages, addressed by named
// constant rather than inline string literals at each call site.
const (
	RoomID  = "room_id"
	EventID = "event_id"
	Sender  = "sender"
)
