// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "strings"

// EventType identifies the kind of a room event. It is a plain string so
// that callers can pass through event types the engine doesn't otherwise
// care about ("the other string escape" in the data model) without a
// registry.
type EventType string

// The room event kinds that the authorization rules dispatch on directly.
const (
	EventTypeCreate           EventType = "m.room.create"
	EventTypeMember           EventType = "m.room.member"
	EventTypePowerLevels      EventType = "m.room.power_levels"
	EventTypeJoinRules        EventType = "m.room.join_rules"
	EventTypeAliases          EventType = "m.room.aliases"
	EventTypeRedaction        EventType = "m.room.redaction"
	EventTypeThirdPartyInvite EventType = "m.room.third_party_invite"
)

// MembershipState is the value of an m.room.member event's content.membership
// field.
type MembershipState string

const (
	MembershipJoin   MembershipState = "join"
	MembershipLeave  MembershipState = "leave"
	MembershipInvite MembershipState = "invite"
	MembershipBan    MembershipState = "ban"
	MembershipKnock  MembershipState = "knock"
)

// JoinRule is the value of an m.room.join_rules event's content.join_rule
// field.
type JoinRule string

const (
	JoinRuleInvite     JoinRule = "invite"
	JoinRulePublic     JoinRule = "public"
	JoinRuleKnock      JoinRule = "knock"
	JoinRuleRestricted JoinRule = "restricted"
	JoinRulePrivate    JoinRule = "private"
)

// StateKeyTuple is the key of a StateMap: an event type paired with a state
// key. Two events with the same tuple contribute to the same piece of room
// state, and at most one may be current in any one state snapshot.
type StateKeyTuple struct {
	Type     EventType
	StateKey string
}

// Event is the capability set the engine needs from a room event. Callers
// may implement it over whatever concrete PDU representation they already
// have; the engine only ever reads through this interface and never
// extends an Event's lifetime beyond a single call.
type Event interface {
	EventID() string
	RoomID() string
	Sender() string
	EventType() EventType
	// StateKey returns nil for events that are not state events.
	StateKey() *string
	// Content returns the raw (unredacted) JSON content of the event.
	Content() []byte
	PrevEvents() []string
	// Redacts returns the event ID a redaction event targets, or "" if
	// the event is not a redaction.
	Redacts() string
}

// StateAccessor looks up the current event for a piece of room state. It
// must be total (returning nil rather than panicking on an unknown tuple)
// and must not have observable side effects; the engine may call it more
// than once per authorization with the same key.
type StateAccessor func(eventType EventType, stateKey string) Event

// StateMap is a map-backed StateAccessor, convenient for callers building a
// snapshot from a flat collection of state events.
type StateMap map[StateKeyTuple]Event

// Accessor adapts a StateMap to a StateAccessor.
func (m StateMap) Accessor() StateAccessor {
	return func(eventType EventType, stateKey string) Event {
		return m[StateKeyTuple{Type: eventType, StateKey: stateKey}]
	}
}

// serverNameOf extracts the server_name suffix of an opaque Matrix
// identifier (a user, room, or event ID of the form "<sigil><localpart>:
// <server_name>"). It is total on well-formed IDs and returns an
// InvalidPdu error otherwise.
func serverNameOf(id string) (string, error) {
	if len(id) == 0 {
		return "", invalidPDU("empty identifier")
	}
	idx := strings.IndexByte(id, ':')
	if idx < 0 || idx == len(id)-1 {
		return "", invalidPDU("identifier %q has no server name", id)
	}
	return id[idx+1:], nil
}

// isUserID reports whether id looks like a Matrix user ID ("@localpart:
// server_name"). It is a syntactic check only: it does not resolve or
// verify the server name.
func isUserID(id string) bool {
	return len(id) > 1 && id[0] == '@' && strings.IndexByte(id, ':') > 0
}
