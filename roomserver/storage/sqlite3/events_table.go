// Copyright 2024 New Vector Ltd.
// Copyright 2019, 2020 The Matrix.org Foundation C.I.C.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ike20013/roomauth/eventauth"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/storage/tables"
)

const eventsSchema = `
  CREATE TABLE IF NOT EXISTS roomserver_events (
    event_id TEXT NOT NULL PRIMARY KEY,
    room_id TEXT NOT NULL,
    sender TEXT NOT NULL,
    type TEXT NOT NULL,
    state_key TEXT,
    content TEXT NOT NULL,
    prev_events TEXT NOT NULL,
    redacts TEXT NOT NULL DEFAULT ''
  );

  CREATE INDEX IF NOT EXISTS roomserver_events_room_idx ON roomserver_events(room_id);
`

const insertEventSQL = `
	INSERT OR REPLACE INTO roomserver_events
	  (event_id, room_id, sender, type, state_key, content, prev_events, redacts)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectEventSQL = `
	SELECT room_id, sender, type, state_key, content, prev_events, redacts
	  FROM roomserver_events WHERE event_id = $1
`

type eventsStatements struct {
	db              *sql.DB
	insertEventStmt *sql.Stmt
	selectEventStmt *sql.Stmt
}

func CreateEventsTable(db *sql.DB) error {
	_, err := db.Exec(eventsSchema)
	return err
}

func PrepareEventsTable(db *sql.DB) (tables.Events, error) {
	s := &eventsStatements{db: db}
	return s, sqlutil.StatementList{
		{Statement: &s.insertEventStmt, SQL: insertEventSQL},
		{Statement: &s.selectEventStmt, SQL: selectEventSQL},
	}.Prepare(db)
}

func (s *eventsStatements) InsertEvent(ctx context.Context, txn *sql.Tx, event *tables.PDU) error {
	prevEvents, err := json.Marshal(event.Prev)
	if err != nil {
		return err
	}
	var stateKey sql.NullString
	if event.Key != nil {
		stateKey = sql.NullString{String: *event.Key, Valid: true}
	}
	_, err = sqlutil.TxStmt(txn, s.insertEventStmt).ExecContext(
		ctx, event.ID, event.Room, event.SenderID, string(event.Type), stateKey, event.RawContent, prevEvents, event.RedactsID,
	)
	return err
}

func (s *eventsStatements) SelectEvent(ctx context.Context, txn *sql.Tx, eventID string) (*tables.PDU, error) {
	var room, sender, eventType, content, prevEvents, redacts string
	var stateKey sql.NullString
	err := sqlutil.TxStmt(txn, s.selectEventStmt).QueryRowContext(ctx, eventID).Scan(
		&room, &sender, &eventType, &stateKey, &content, &prevEvents, &redacts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var prev []string
	if err := json.Unmarshal([]byte(prevEvents), &prev); err != nil {
		return nil, err
	}
	pdu := &tables.PDU{
		ID: eventID, Room: room, SenderID: sender, Type: eventauth.EventType(eventType),
		RawContent: []byte(content), Prev: prev, RedactsID: redacts,
	}
	if stateKey.Valid {
		pdu.Key = &stateKey.String
	}
	return pdu, nil
}
