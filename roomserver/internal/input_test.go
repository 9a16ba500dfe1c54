// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ike20013/roomauth/eventauth"
	"github.com/ike20013/roomauth/roomserver/storage/shared"
	"github.com/ike20013/roomauth/roomserver/storage/tables"
)

// fakeEvents is an in-memory tables.Events, letting these tests exercise
// RoomInputAPI without a real SQL schema behind it.
type fakeEvents struct {
	byID map[string]*tables.PDU
}

func newFakeEvents() *fakeEvents { return &fakeEvents{byID: map[string]*tables.PDU{}} }

func (f *fakeEvents) InsertEvent(ctx context.Context, txn *sql.Tx, event *tables.PDU) error {
	f.byID[event.ID] = event
	return nil
}

func (f *fakeEvents) SelectEvent(ctx context.Context, txn *sql.Tx, eventID string) (*tables.PDU, error) {
	return f.byID[eventID], nil
}

// fakeCurrentState is an in-memory tables.CurrentState.
type fakeCurrentState struct {
	byTuple map[string]string
}

func newFakeCurrentState() *fakeCurrentState { return &fakeCurrentState{byTuple: map[string]string{}} }

func tupleKey(roomID string, eventType eventauth.EventType, stateKey string) string {
	return roomID + "\x1f" + string(eventType) + "\x1f" + stateKey
}

func (f *fakeCurrentState) SetCurrentState(ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string, eventID string) error {
	f.byTuple[tupleKey(roomID, eventType, stateKey)] = eventID
	return nil
}

func (f *fakeCurrentState) SelectCurrentState(ctx context.Context, txn *sql.Tx, roomID string, eventType eventauth.EventType, stateKey string) (string, error) {
	return f.byTuple[tupleKey(roomID, eventType, stateKey)], nil
}

func (f *fakeCurrentState) SelectCurrentStateIDsForRoom(ctx context.Context, txn *sql.Tx, roomID string) ([]string, error) {
	var ids []string
	for _, id := range f.byTuple {
		ids = append(ids, id)
	}
	return ids, nil
}

// noopCache disables caching so tests observe the fake tables directly.
type noopCache struct{}

func (noopCache) GetStateEvent(string, eventauth.EventType, string) (eventauth.Event, bool) {
	return nil, false
}
func (noopCache) StoreStateEvent(string, eventauth.EventType, string, eventauth.Event) {}
func (noopCache) InvalidateRoom(string)                                               {}

func newTestDatabase(t *testing.T) (*shared.Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &shared.Database{
		DB:           db,
		Events:       newFakeEvents(),
		CurrentState: newFakeCurrentState(),
		Cache:        noopCache{},
	}, mock
}

func rawJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRoomInputAPI_CreateEventBootstraps(t *testing.T) {
	db, mock := newTestDatabase(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	api := NewRoomInputAPI(db, nil, "", nil, false)

	creator := "@alice:example.org"
	create := &tables.PDU{
		ID: "$create:example.org", Room: "!room:example.org", SenderID: creator,
		Type: eventauth.EventTypeCreate, Key: strPtr(""),
		RawContent: rawJSON(t, eventauth.CreateContent{Creator: &creator}),
	}

	allowed, err := api.InputRoomEvent(context.Background(), create)
	require.NoError(t, err)
	require.True(t, allowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomInputAPI_InviteOnlyJoinDenied(t *testing.T) {
	db, _ := newTestDatabase(t)
	api := NewRoomInputAPI(db, nil, "", nil, false)

	creator := "@alice:example.org"
	create := &tables.PDU{
		ID: "$create:example.org", Room: "!room:example.org", SenderID: creator,
		Type: eventauth.EventTypeCreate, Key: strPtr(""),
		RawContent: rawJSON(t, eventauth.CreateContent{Creator: &creator}),
	}
	require.NoError(t, db.CurrentState.SetCurrentState(context.Background(), nil, "!room:example.org", eventauth.EventTypeCreate, "", create.ID))
	require.NoError(t, db.Events.InsertEvent(context.Background(), nil, create))

	joinRules := &tables.PDU{
		ID: "$joinrules:example.org", Room: "!room:example.org", SenderID: creator,
		Type: eventauth.EventTypeJoinRules, Key: strPtr(""),
		RawContent: rawJSON(t, eventauth.JoinRulesContent{JoinRule: eventauth.JoinRuleInvite}),
	}
	require.NoError(t, db.CurrentState.SetCurrentState(context.Background(), nil, "!room:example.org", eventauth.EventTypeJoinRules, "", joinRules.ID))
	require.NoError(t, db.Events.InsertEvent(context.Background(), nil, joinRules))

	join := &tables.PDU{
		ID: "$join:example.org", Room: "!room:example.org", SenderID: "@bob:example.org",
		Type: eventauth.EventTypeMember, Key: strPtr("@bob:example.org"),
		RawContent: rawJSON(t, eventauth.MemberContent{Membership: eventauth.MembershipJoin}),
	}

	allowed, err := api.InputRoomEvent(context.Background(), join)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRoomInputAPI_UnsupportedRoomVersionErrors(t *testing.T) {
	db, _ := newTestDatabase(t)
	api := NewRoomInputAPI(db, nil, "", nil, false)

	creator := "@alice:example.org"
	badVersion := "no-such-version"
	create := &tables.PDU{
		ID: "$create:example.org", Room: "!room:example.org", SenderID: creator,
		Type: eventauth.EventTypeCreate, Key: strPtr(""),
		RawContent: rawJSON(t, eventauth.CreateContent{Creator: &creator, RoomVersion: &badVersion}),
	}
	require.NoError(t, db.CurrentState.SetCurrentState(context.Background(), nil, "!room:example.org", eventauth.EventTypeCreate, "", create.ID))
	require.NoError(t, db.Events.InsertEvent(context.Background(), nil, create))

	msg := &tables.PDU{
		ID: "$msg:example.org", Room: "!room:example.org", SenderID: "@alice:example.org",
		Type: "m.room.message",
	}

	_, err := api.InputRoomEvent(context.Background(), msg)
	require.Error(t, err)
}

func strPtr(s string) *string { return &s }
