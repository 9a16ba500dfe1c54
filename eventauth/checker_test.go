// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCheck_CreateEventBootstraps(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{
		id: "$create", roomID: "!room:example.org", sender: creator,
		eventType: EventTypeCreate, stateKey: sk(""),
		content: CreateContent{Creator: &creator},
	}
	profile, err := NewRoomVersionProfile("10")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthCheck_CreateEventRejectsNonEmptyStateKey(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{
		eventType: EventTypeCreate, stateKey: sk("notempty"),
		content: CreateContent{Creator: &creator},
	}
	profile, _ := NewRoomVersionProfile("10")
	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_RejectsUnfederatedCrossDomainCreate(t *testing.T) {
	// Room's create event disallows federation; an event from a foreign
	// server targeting the room should simply find no create event in
	// its own state view and be rejected, modelled here by omitting the
	// create event from the snapshot entirely.
	profile, _ := NewRoomVersionProfile("10")
	msg := &fakeEvent{eventType: "m.room.message", sender: "@mallory:evil.example.org"}
	ok, err := AuthCheck(profile, msg, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_PublicJoinAllowed(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	joinRules := &fakeEvent{eventType: EventTypeJoinRules, stateKey: sk(""), content: JoinRulesContent{JoinRule: JoinRulePublic}}
	snapshot := newSnapshot(create, joinRules)

	join := &fakeEvent{
		eventType: EventTypeMember, sender: "@bob:example.org", stateKey: sk("@bob:example.org"),
		content: MemberContent{Membership: MembershipJoin},
	}
	profile, _ := NewRoomVersionProfile("10")
	ok, err := AuthCheck(profile, join, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthCheck_InviteOnlyJoinDenied(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	joinRules := &fakeEvent{eventType: EventTypeJoinRules, stateKey: sk(""), content: JoinRulesContent{JoinRule: JoinRuleInvite}}
	snapshot := newSnapshot(create, joinRules)

	join := &fakeEvent{
		eventType: EventTypeMember, sender: "@bob:example.org", stateKey: sk("@bob:example.org"),
		content: MemberContent{Membership: MembershipJoin},
	}
	profile, _ := NewRoomVersionProfile("10")
	ok, err := AuthCheck(profile, join, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_BanByModerator(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	pl := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: PowerLevelsContent{
		Users: map[string]int64{"@alice:example.org": 100},
	}}
	aliceMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk("@alice:example.org"), content: MemberContent{Membership: MembershipJoin}}
	bobMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk("@bob:example.org"), content: MemberContent{Membership: MembershipJoin}}
	snapshot := newSnapshot(create, pl, aliceMember, bobMember)

	ban := &fakeEvent{
		eventType: EventTypeMember, sender: "@alice:example.org", stateKey: sk("@bob:example.org"),
		content: MemberContent{Membership: MembershipBan},
	}
	profile, _ := NewRoomVersionProfile("10")
	ok, err := AuthCheck(profile, ban, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthCheck_LowPowerUserCannotBan(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	pl := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: PowerLevelsContent{}}
	charlieMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk("@charlie:example.org"), content: MemberContent{Membership: MembershipJoin}}
	bobMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk("@bob:example.org"), content: MemberContent{Membership: MembershipJoin}}
	snapshot := newSnapshot(create, pl, charlieMember, bobMember)

	ban := &fakeEvent{
		eventType: EventTypeMember, sender: "@charlie:example.org", stateKey: sk("@bob:example.org"),
		content: MemberContent{Membership: MembershipBan},
	}
	profile, _ := NewRoomVersionProfile("10")
	ok, err := AuthCheck(profile, ban, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_CreatorJoinAfterCreate(t *testing.T) {
	// The creator's very first membership event follows the create event
	// directly, before the room has join rules or power levels; it must
	// be allowed anyway.
	creator := "@alice:example.org"
	create := &fakeEvent{
		id: "$create:example.org", eventType: EventTypeCreate, stateKey: sk(""),
		content: CreateContent{Creator: &creator},
	}
	snapshot := newSnapshot(create)

	join := &fakeEvent{
		eventType: EventTypeMember, sender: creator, stateKey: sk(creator),
		prevEvents: []string{"$create:example.org"},
		content:    MemberContent{Membership: MembershipJoin},
	}
	profile, _ := NewRoomVersionProfile("10")

	ok, err := AuthCheck(profile, join, create, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Without the prev event the same join has nothing to admit it.
	ok, err = AuthCheck(profile, join, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_UnparseablePowerLevelsUpdateDenied(t *testing.T) {
	// The previous power_levels event parses but the incoming one does
	// not: the comparison cannot be made, which is a denial.
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	pl := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: PowerLevelsContent{
		Users: map[string]int64{creator: 100},
	}}
	aliceMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk(creator), content: MemberContent{Membership: MembershipJoin}}
	snapshot := newSnapshot(create, pl, aliceMember)

	garbled := &fakeEvent{
		eventType: EventTypePowerLevels, sender: creator, stateKey: sk(""),
		content: map[string]any{"users": "not-a-map"},
	}
	profile, _ := NewRoomVersionProfile("10")

	ok, err := AuthCheck(profile, garbled, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_SendLevelGate(t *testing.T) {
	// m.room.message requires 60 but bob only has 50; everything else
	// about the event is fine.
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	pl := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: PowerLevelsContent{
		Users:  map[string]int64{creator: 100, "@bob:example.org": 50},
		Events: map[string]int64{"m.room.message": 60},
	}}
	bobMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk("@bob:example.org"), content: MemberContent{Membership: MembershipJoin}}
	snapshot := newSnapshot(create, pl, bobMember)

	msg := &fakeEvent{eventType: "m.room.message", sender: "@bob:example.org"}
	profile, _ := NewRoomVersionProfile("10")

	ok, err := AuthCheck(profile, msg, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthCheck_Deterministic(t *testing.T) {
	creator := "@alice:example.org"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	joinRules := &fakeEvent{eventType: EventTypeJoinRules, stateKey: sk(""), content: JoinRulesContent{JoinRule: JoinRulePublic}}
	snapshot := newSnapshot(create, joinRules)
	before := len(snapshot)

	join := &fakeEvent{
		eventType: EventTypeMember, sender: "@bob:example.org", stateKey: sk("@bob:example.org"),
		content: MemberContent{Membership: MembershipJoin},
	}
	profile, _ := NewRoomVersionProfile("10")

	first, err := AuthCheck(profile, join, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := AuthCheck(profile, join, nil, nil, snapshot.Accessor(), nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, before, len(snapshot), "AuthCheck must not mutate the snapshot")
}

func TestAuthCheck_CanFederateDefaultsFalse(t *testing.T) {
	// No create event, or a create event without m.federate, means no
	// federation.
	assert.False(t, CanFederate(StateMap{}.Accessor()))

	creator := "@alice:example.org"
	plain := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	assert.False(t, CanFederate(newSnapshot(plain).Accessor()))
}

func TestAuthCheck_CanFederateReadsFlag(t *testing.T) {
	creator := "@alice:example.org"
	yes := true
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator, MFederate: &yes}}
	snapshot := newSnapshot(create)
	assert.True(t, CanFederate(snapshot.Accessor()))

	no := false
	create = &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator, MFederate: &no}}
	snapshot = newSnapshot(create)
	assert.False(t, CanFederate(snapshot.Accessor()))
}
