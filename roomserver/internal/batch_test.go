// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ike20013/roomauth/eventauth"
)

type batchEvent struct {
	id, room, sender string
	eventType        eventauth.EventType
	stateKey         *string
	content          []byte
}

func (e *batchEvent) EventID() string                { return e.id }
func (e *batchEvent) RoomID() string                 { return e.room }
func (e *batchEvent) Sender() string                 { return e.sender }
func (e *batchEvent) EventType() eventauth.EventType { return e.eventType }
func (e *batchEvent) StateKey() *string              { return e.stateKey }
func (e *batchEvent) Content() []byte                { return e.content }
func (e *batchEvent) PrevEvents() []string           { return nil }
func (e *batchEvent) Redacts() string                { return "" }

func TestAuthorizeBatch_AllAllowedInPublicRoom(t *testing.T) {
	empty := ""
	snapshot := eventauth.StateMap{
		{Type: eventauth.EventTypeCreate, StateKey: ""}: &batchEvent{
			eventType: eventauth.EventTypeCreate, stateKey: &empty,
			content: []byte(`{"creator":"@alice:example.org"}`),
		},
		{Type: eventauth.EventTypeJoinRules, StateKey: ""}: &batchEvent{
			eventType: eventauth.EventTypeJoinRules, stateKey: &empty,
			content: []byte(`{"join_rule":"public"}`),
		},
	}

	bob := "@bob:example.org"
	carol := "@carol:example.org"
	events := []eventauth.Event{
		&batchEvent{id: "$1", sender: bob, eventType: eventauth.EventTypeMember, stateKey: &bob, content: []byte(`{"membership":"join"}`)},
		&batchEvent{id: "$2", sender: carol, eventType: eventauth.EventTypeMember, stateKey: &carol, content: []byte(`{"membership":"join"}`)},
	}

	profile, err := eventauth.NewRoomVersionProfile("10")
	require.NoError(t, err)

	verdicts, err := AuthorizeBatch(context.Background(), profile, events, snapshot.Accessor(), nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true}, verdicts)
}

func TestAuthorizeBatch_PropagatesFatalError(t *testing.T) {
	profile, err := eventauth.NewRoomVersionProfile("10")
	require.NoError(t, err)

	empty := ""
	snapshot := eventauth.StateMap{
		{Type: eventauth.EventTypeCreate, StateKey: ""}: &batchEvent{
			eventType: eventauth.EventTypeCreate, stateKey: &empty,
			content: []byte(`{"creator":"@alice:example.org"}`),
		},
	}

	events := []eventauth.Event{
		&batchEvent{id: "$bad", sender: "not-a-user-id", eventType: "m.room.message"},
	}

	_, err = AuthorizeBatch(context.Background(), profile, events, snapshot.Accessor(), nil)
	require.Error(t, err)
}
