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

	"github.com/ike20013/roomauth/eventauth"
	"github.com/ike20013/roomauth/external"
	"github.com/ike20013/roomauth/external/sqlutil"
	"github.com/ike20013/roomauth/roomserver/storage/tables"
)

const currentStateSchema = `
  CREATE TABLE IF NOT EXISTS roomserver_current_state (
    room_id TEXT NOT NULL,
    type TEXT NOT NULL,
    state_key TEXT NOT NULL,
    event_id TEXT NOT NULL,
    PRIMARY KEY (room_id, type, state_key)
  );
`

const upsertCurrentStateSQL = `
	INSERT INTO roomserver_current_state (room_id, type, state_key, event_id)
	  VALUES ($1, $2, $3, $4)
	  ON CONFLICT (room_id, type, state_key) DO UPDATE SET event_id = $4
`

const selectCurrentStateSQL = `
	SELECT event_id FROM roomserver_current_state WHERE room_id = $1 AND type = $2 AND state_key = $3
`

const selectCurrentStateIDsForRoomSQL = `
	SELECT event_id FROM roomserver_current_state WHERE room_id = $1
`

type currentStateStatements struct {
	db                               *sql.DB
	upsertCurrentStateStmt           *sql.Stmt
	selectCurrentStateStmt           *sql.Stmt
	selectCurrentStateIDsForRoomStmt *sql.Stmt
}

func CreateCurrentStateTable(db *sql.DB) error {
	_, err := db.Exec(currentStateSchema)
	return err
}

func PrepareCurrentStateTable(db *sql.DB) (tables.CurrentState, error) {
	s := &currentStateStatements{db: db}
	return s, sqlutil.StatementList{
		{Statement: &s.upsertCurrentStateStmt, SQL: upsertCurrentStateSQL},
		{Statement: &s.selectCurrentStateStmt, SQL: selectCurrentStateSQL},
		{Statement: &s.selectCurrentStateIDsForRoomStmt, SQL: selectCurrentStateIDsForRoomSQL},
	}.Prepare(db)
}

func (s *currentStateStatements) SetCurrentState(
	ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string, eventID string,
) error {
	_, err := sqlutil.TxStmt(txn, s.upsertCurrentStateStmt).ExecContext(ctx, roomID, string(eventType), stateKey, eventID)
	return err
}

func (s *currentStateStatements) SelectCurrentState(
	ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string,
) (string, error) {
	var eventID string
	err := sqlutil.TxStmt(txn, s.selectCurrentStateStmt).QueryRowContext(ctx, roomID, string(eventType), stateKey).Scan(&eventID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return eventID, err
}

func (s *currentStateStatements) SelectCurrentStateIDsForRoom(
	ctx context.Context, txn *sql.Tx, roomID string,
) ([]string, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectCurrentStateIDsForRoomStmt).QueryContext(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer external.CloseAndLogIfError(ctx, rows, "selectCurrentStateIDsForRoom: rows.close() failed")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
