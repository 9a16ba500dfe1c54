// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package tables declares the interfaces the postgres and sqlite3
// storage packages implement, so that roomserver/storage/shared can
// assemble a Database out of either backend's concrete statements
// without depending on either package directly.
package tables

import (
	"context"
	"database/sql"

	"github.com/ike20013/roomauth/eventauth"
)

// PDU is the on-disk representation of a room event: everything
// eventauth.Event needs, stored as plain columns plus a JSON content
// blob. PDU implements eventauth.Event directly so rows read back from
// storage can be handed straight to AuthCheck.
type PDU struct {
	ID         string
	Room       string
	SenderID   string
	Type       eventauth.EventType
	Key        *string
	RawContent []byte
	Prev       []string
	RedactsID  string
}

func (p *PDU) EventID() string                { return p.ID }
func (p *PDU) RoomID() string                 { return p.Room }
func (p *PDU) Sender() string                 { return p.SenderID }
func (p *PDU) EventType() eventauth.EventType { return p.Type }
func (p *PDU) StateKey() *string              { return p.Key }
func (p *PDU) Content() []byte                { return p.RawContent }
func (p *PDU) PrevEvents() []string           { return p.Prev }
func (p *PDU) Redacts() string                { return p.RedactsID }

// Events is the backend-agnostic interface over the events table: the
// flat store of every PDU this server has accepted, regardless of
// whether it is part of any room's current state.
type Events interface {
	InsertEvent(ctx context.Context, txn *sql.Tx, event *PDU) error
	SelectEvent(ctx context.Context, txn *sql.Tx, eventID string) (*PDU, error)
}

// CurrentState is the backend-agnostic interface over the current-state
// table: for each room, the single PDU currently current for each
// (event type, state key) tuple. This module deliberately does not
// implement state resolution across forks of the room DAG: this table
// always names whichever event SetCurrentState was most recently asked
// to record, under the caller's own resolution policy.
type CurrentState interface {
	SetCurrentState(ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string, eventID string) error
	SelectCurrentState(ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string) (eventID string, err error)
	SelectCurrentStateIDsForRoom(ctx context.Context, txn *sql.Tx, roomID string) (eventIDs []string, err error)
}
