// Copyright 2024 New Vector Ltd.
// Copyright 2020 The Matrix.org Foundation C.I.C.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

//go:build wasm
// +build wasm

package storage

import (
	"context"
	"fmt"

	"github.com/ike20013/roomauth/external/caching"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/storage/shared"
	"github.com/ike20013/roomauth/roomserver/storage/sqlite3"
	"github.com/ike20013/roomauth/setup/config"
)

// Open opens a database connection. The wasm build opens only the
// sqlite3 backend; a postgres connection string is an error.
func Open(ctx context.Context, conMan *sqlutil.Connections, dbProperties *config.DatabaseOptions, cache caching.RoomServerCaches) (*shared.Database, error) {
	switch {
	case dbProperties.ConnectionString.IsSQLite():
		return sqlite3.Open(ctx, conMan, dbProperties, cache)
	case dbProperties.ConnectionString.IsPostgres():
		return nil, fmt.Errorf("can't use Postgres implementation in wasm")
	default:
		return nil, fmt.Errorf("unexpected database type")
	}
}
