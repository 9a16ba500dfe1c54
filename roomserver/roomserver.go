// Copyright 2024 New Vector Ltd.
// Copyright 2017 Vector Creations Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package roomserver

import (
	"github.com/sirupsen/logrus"

	"github.com/ike20013/roomauth/external/caching"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/internal"
	"github.com/ike20013/roomauth/roomserver/storage"
	"github.com/ike20013/roomauth/setup/config"
	"github.com/ike20013/roomauth/setup/jetstream"
	"github.com/ike20013/roomauth/setup/process"
)

// NewRoomInputAPI wires together the state snapshot store and the Room
// Input Pipeline: the concrete entry point callers use to submit a PDU
// for authorization. It opens storage and hands the result to the
// internal package that actually implements the component.
func NewRoomInputAPI(
	processContext *process.ProcessContext,
	cfg *config.RoomAuth,
	cm *sqlutil.Connections,
	natsInstance *jetstream.NATSInstance,
	caches caching.RoomServerCaches,
	restrictedJoinAllowed internal.RestrictedJoinAllowedFunc,
	enableMetrics bool,
) *internal.RoomInputAPI {
	roomserverDB, err := storage.Open(processContext.Context(), cm, &cfg.RoomServer.Database, caches)
	if err != nil {
		logrus.WithError(err).Panicf("roomserver: failed to connect to room server db")
	}

	js, _ := natsInstance.Prepare(processContext, &cfg.Global.JetStream)

	return internal.NewRoomInputAPI(
		roomserverDB, js, cfg.Global.JetStream.Prefixed(""), restrictedJoinAllowed, enableMetrics,
	)
}
