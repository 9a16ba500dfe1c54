// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package shared holds the backend-agnostic half of the room state
// store: the postgres and sqlite3 packages each assemble a Database out
// of their own concrete table implementations, and everything above
// this layer (the RoomInputAPI, the authorization engine's StateAccessor)
// talks only to the Database methods defined here.
package shared

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ike20013/roomauth/eventauth"
	"github.com/ike20013/roomauth/external/caching"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/storage/tables"
)

// Database is a room state store backed by either supported SQL engine.
// It stores every accepted PDU in a flat events table and, separately,
// the single current event for each (room, type, state key) tuple. It
// does not resolve state across forks of the room DAG: SetCurrentState
// always names whichever event the caller most recently asked to record,
// under the caller's own conflict policy.
type Database struct {
	DB           *sql.DB
	Events       tables.Events
	CurrentState tables.CurrentState
	Cache        caching.RoomServerCaches
}

// StoreEvent persists a new PDU and, for state events, advances the
// room's current state to name it. It runs inside a single transaction
// so readers never observe an event without its corresponding current
// state update (or vice versa).
func (d *Database) StoreEvent(ctx context.Context, event *tables.PDU) error {
	err := sqlutil.WithTransaction(d.DB, func(txn *sql.Tx) error {
		if err := d.Events.InsertEvent(ctx, txn, event); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if event.StateKey() == nil {
			return nil
		}
		return d.CurrentState.SetCurrentState(ctx, txn, event.RoomID(), event.EventType(), *event.StateKey(), event.EventID())
	})
	if err != nil {
		return err
	}
	if event.StateKey() != nil {
		d.Cache.StoreStateEvent(event.RoomID(), event.EventType(), *event.StateKey(), event)
	}
	return nil
}

// StateEvent returns the current event for a (room, type, state key)
// tuple, or nil if no such state event has ever been recorded. It
// consults the cache before the database.
func (d *Database) StateEvent(ctx context.Context, roomID string, eventType eventauth.EventType, stateKey string) (eventauth.Event, error) {
	if cached, ok := d.Cache.GetStateEvent(roomID, eventType, stateKey); ok {
		return cached, nil
	}

	eventID, err := d.CurrentState.SelectCurrentState(ctx, nil, roomID, eventType, stateKey)
	if err != nil {
		return nil, fmt.Errorf("select current state: %w", err)
	}
	if eventID == "" {
		return nil, nil
	}
	pdu, err := d.Events.SelectEvent(ctx, nil, eventID)
	if err != nil {
		return nil, fmt.Errorf("select event: %w", err)
	}
	if pdu == nil {
		return nil, nil
	}
	d.Cache.StoreStateEvent(roomID, eventType, stateKey, pdu)
	return pdu, nil
}

// Event returns the PDU for eventID, or nil if this server has never
// stored it.
func (d *Database) Event(ctx context.Context, eventID string) (eventauth.Event, error) {
	pdu, err := d.Events.SelectEvent(ctx, nil, eventID)
	if err != nil {
		return nil, err
	}
	if pdu == nil {
		return nil, nil
	}
	return pdu, nil
}

// StateAccessor returns an eventauth.StateAccessor reading through to
// this database's current-state table for roomID. Lookups that error
// are reported by returning nil, matching the StateAccessor contract
// that a missing tuple and a failed lookup are both "no such event" as
// far as the authorization engine is concerned; callers that need to
// distinguish the two should call StateEvent directly instead.
func (d *Database) StateAccessor(ctx context.Context, roomID string) eventauth.StateAccessor {
	return func(eventType eventauth.EventType, stateKey string) eventauth.Event {
		event, err := d.StateEvent(ctx, roomID, eventType, stateKey)
		if err != nil {
			logrus.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
				"room_id": roomID, "type": eventType, "state_key": stateKey,
			}).Error("StateAccessor: lookup failed")
			return nil
		}
		return event
	}
}

// RoomExists reports whether a create event has ever been recorded for
// roomID.
func (d *Database) RoomExists(ctx context.Context, roomID string) (bool, error) {
	event, err := d.StateEvent(ctx, roomID, eventauth.EventTypeCreate, "")
	if err != nil {
		return false, err
	}
	return event != nil, nil
}

