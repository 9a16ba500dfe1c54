// Copyright 2024 New Vector Ltd.
// Copyright 2019, 2020 The Matrix.org Foundation C.I.C.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package postgres

import (
	"context"
	"fmt"

	"github.com/ike20013/roomauth/external/caching"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/storage/shared"
	"github.com/ike20013/roomauth/setup/config"
)

// Open opens a postgres-backed room state store.
func Open(ctx context.Context, conMan *sqlutil.Connections, dbProperties *config.DatabaseOptions, cache caching.RoomServerCaches) (*shared.Database, error) {
	db, err := conMan.Connection("postgres", string(dbProperties.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err = CreateEventsTable(db); err != nil {
		return nil, fmt.Errorf("postgres: create events table: %w", err)
	}
	if err = CreateCurrentStateTable(db); err != nil {
		return nil, fmt.Errorf("postgres: create current_state table: %w", err)
	}

	events, err := PrepareEventsTable(db)
	if err != nil {
		return nil, fmt.Errorf("postgres: prepare events table: %w", err)
	}
	currentState, err := PrepareCurrentStateTable(db)
	if err != nil {
		return nil, fmt.Errorf("postgres: prepare current_state table: %w", err)
	}

	return &shared.Database{
		DB:           db,
		Events:       events,
		CurrentState: currentState,
		Cache:        cache,
	}, nil
}
