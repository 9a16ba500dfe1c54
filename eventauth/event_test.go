// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "encoding/json"

// fakeEvent is a minimal Event implementation used across this package's
// tests; it has no relationship to any concrete PDU type the rest of the
// module uses.
type fakeEvent struct {
	id         string
	roomID     string
	sender     string
	eventType  EventType
	stateKey   *string
	content    any
	prevEvents []string
	redacts    string
}

func (e *fakeEvent) EventID() string        { return e.id }
func (e *fakeEvent) RoomID() string         { return e.roomID }
func (e *fakeEvent) Sender() string         { return e.sender }
func (e *fakeEvent) EventType() EventType   { return e.eventType }
func (e *fakeEvent) StateKey() *string      { return e.stateKey }
func (e *fakeEvent) PrevEvents() []string   { return e.prevEvents }
func (e *fakeEvent) Redacts() string        { return e.redacts }
func (e *fakeEvent) Content() []byte {
	b, err := json.Marshal(e.content)
	if err != nil {
		panic(err)
	}
	return b
}

func sk(s string) *string { return &s }

func newSnapshot(events ...*fakeEvent) StateMap {
	m := make(StateMap)
	for _, e := range events {
		if e.stateKey == nil {
			continue
		}
		m[StateKeyTuple{Type: e.eventType, StateKey: *e.stateKey}] = e
	}
	return m
}
