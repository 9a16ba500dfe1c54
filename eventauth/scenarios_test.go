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

// TestScenario_SelfPromotionRejected covers a non-creator member trying
// to raise their own power level above what the room's current sender
// power allows.
func TestScenario_SelfPromotionRejected(t *testing.T) {
	old := PowerLevelsContent{Users: map[string]int64{"@alice:example.org": 100, "@bob:example.org": 0}}
	newC := PowerLevelsContent{Users: map[string]int64{"@alice:example.org": 100, "@bob:example.org": 100}}

	prev := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: old}
	next := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), sender: "@bob:example.org", content: newC}

	got := CheckPowerLevels(&RoomVersionProfile{}, next, prev, 0)
	require.NotNil(t, got)
	assert.False(t, *got, "bob must not be able to raise his own power above his current level")
}

// TestScenario_ThirdPartyInviteMismatchRejected covers an invite signed
// for one user being replayed to admit a different one.
func TestScenario_ThirdPartyInviteMismatchRejected(t *testing.T) {
	tpiEvent := &fakeEvent{
		eventType: EventTypeThirdPartyInvite, stateKey: sk("tok123"), sender: "@alice:example.org",
		content: ThirdPartyInviteEventContent{PublicKey: "tok123"},
	}
	tpi := &ThirdPartyInviteRef{
		Signed: SignedThirdPartyInvite{MXID: "@bob:example.org", Token: "tok123"},
	}
	target := sk("@carol:example.org") // mismatched target: invite was signed for bob, not carol
	ok := VerifyThirdPartyInvite(target, "@alice:example.org", tpi, tpiEvent)
	assert.False(t, ok)
}

func TestScenario_ThirdPartyInviteMatchAccepted(t *testing.T) {
	tpiEvent := &fakeEvent{
		eventType: EventTypeThirdPartyInvite, stateKey: sk("tok123"), sender: "@alice:example.org",
		content: ThirdPartyInviteEventContent{PublicKey: "tok123"},
	}
	tpi := &ThirdPartyInviteRef{
		Signed: SignedThirdPartyInvite{MXID: "@bob:example.org", Token: "tok123"},
	}
	ok := VerifyThirdPartyInvite(sk("@bob:example.org"), "@alice:example.org", tpi, tpiEvent)
	assert.True(t, ok)
}

// TestScenario_ThirdPartyInviteAdmitsMember covers the Membership
// Validator accepting a verified third-party invite even though the
// inviter holds no special power.
func TestScenario_ThirdPartyInviteAdmitsMember(t *testing.T) {
	verified := true
	ok := ValidMembershipChange(membershipArgs{
		TargetUser: "@bob:example.org",
		Sender:     "@alice:example.org",
		Content: &MemberContent{
			Membership: MembershipInvite,
			ThirdPartyInvite: &ThirdPartyInviteRef{
				Signed: SignedThirdPartyInvite{MXID: "@bob:example.org", Token: "tok123"},
			},
		},
		SenderPower: levelPtr(0),
		InviteLevel: 50,
		TPIVerified: &verified,
	})
	assert.True(t, ok)
}

// TestScenario_S1_CreatorBootstrapsRoom is scenario S1: a creator's own
// m.room.create event, with no prior state at all, is allowed.
func TestScenario_S1_CreatorBootstrapsRoom(t *testing.T) {
	creator := "@alice:a.example"
	version := "6"
	create := &fakeEvent{
		roomID: "!x:a.example", sender: creator,
		eventType: EventTypeCreate, stateKey: sk(""),
		content: CreateContent{Creator: &creator, RoomVersion: &version},
	}
	profile, err := NewRoomVersionProfile("6")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestScenario_S2_CrossDomainCreateRejected is scenario S2: the same
// create event, but room_id names a different server than the sender:
// denied, not a fatal error.
func TestScenario_S2_CrossDomainCreateRejected(t *testing.T) {
	creator := "@alice:a.example"
	version := "6"
	create := &fakeEvent{
		roomID: "!x:b.example", sender: creator,
		eventType: EventTypeCreate, stateKey: sk(""),
		content: CreateContent{Creator: &creator, RoomVersion: &version},
	}
	profile, err := NewRoomVersionProfile("6")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestProperty_CreateEventWithPrevEventsDenied covers testable property
// #3: a create event is never allowed once it names prev_events, however
// otherwise well-formed it is.
func TestProperty_CreateEventWithPrevEventsDenied(t *testing.T) {
	creator := "@alice:a.example"
	create := &fakeEvent{
		roomID: "!x:a.example", sender: creator,
		eventType: EventTypeCreate, stateKey: sk(""),
		prevEvents: []string{"$previous:a.example"},
		content:    CreateContent{Creator: &creator},
	}
	profile, err := NewRoomVersionProfile("6")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestProperty_CreateEventUnknownRoomVersionDenied covers the room
// version validation from §4.3's create-event rules: an unrecognised
// content.room_version denies rather than erroring, since the room
// version named inside the event content is a rule check, not the
// caller-supplied RoomVersionProfile itself.
func TestProperty_CreateEventUnknownRoomVersionDenied(t *testing.T) {
	creator := "@alice:a.example"
	version := "no-such-version"
	create := &fakeEvent{
		roomID: "!x:a.example", sender: creator,
		eventType: EventTypeCreate, stateKey: sk(""),
		content: CreateContent{Creator: &creator, RoomVersion: &version},
	}
	profile, err := NewRoomVersionProfile("6")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, create, nil, nil, StateMap{}.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestProperty_StateKeyUserBindingDenied covers testable property #8: a
// state event whose state key begins '@' but names someone other than
// the sender is denied, even when the sender otherwise has power to send
// the event.
func TestProperty_StateKeyUserBindingDenied(t *testing.T) {
	creator := "@alice:a.example"
	create := &fakeEvent{eventType: EventTypeCreate, stateKey: sk(""), content: CreateContent{Creator: &creator}}
	pl := &fakeEvent{eventType: EventTypePowerLevels, stateKey: sk(""), content: PowerLevelsContent{
		Users: map[string]int64{creator: 100}, EventsDefault: levelPtr(0), StateDefault: levelPtr(0),
	}}
	aliceMember := &fakeEvent{eventType: EventTypeMember, stateKey: sk(creator), content: MemberContent{Membership: MembershipJoin}}
	snapshot := newSnapshot(create, pl, aliceMember)

	spoof := &fakeEvent{
		eventType: "m.room.third_party_invite_alias_probe", sender: creator, stateKey: sk("@bob:a.example"),
		content: map[string]any{},
	}
	profile, err := NewRoomVersionProfile("6")
	require.NoError(t, err)

	ok, err := AuthCheck(profile, spoof, nil, nil, snapshot.Accessor(), nil)
	require.NoError(t, err)
	assert.False(t, ok, "a state event naming another user's id as its state key must be denied")
}

// TestProperty_RedactionFallback covers testable property #9 with
// ExtraRedactionChecks on: a low-power redaction from the same server as
// its target is allowed, and from a different server is denied.
func TestProperty_RedactionFallback(t *testing.T) {
	profile := &RoomVersionProfile{ExtraRedactionChecks: true}

	sameServer := &fakeEvent{id: "$redaction:a.example", redacts: "$target:a.example"}
	ok, err := CheckRedaction(profile, sameServer, 0, 50)
	require.NoError(t, err)
	assert.True(t, ok)

	crossServer := &fakeEvent{id: "$redaction:a.example", redacts: "$target:b.example"}
	ok, err = CheckRedaction(profile, crossServer, 0, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	highPower := &fakeEvent{id: "$redaction:a.example", redacts: "$target:b.example"}
	ok, err = CheckRedaction(profile, highPower, 50, 50)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScenario_RoomVersionProfileFlags(t *testing.T) {
	v1, err := NewRoomVersionProfile("1")
	require.NoError(t, err)
	assert.True(t, v1.SpecialCaseAliasesAuth)
	assert.False(t, v1.ExtraRedactionChecks)

	v6, err := NewRoomVersionProfile("6")
	require.NoError(t, err)
	assert.False(t, v6.SpecialCaseAliasesAuth)
	assert.True(t, v6.LimitNotificationsPowerLevels)

	v9, err := NewRoomVersionProfile("9")
	require.NoError(t, err)
	assert.True(t, v9.AllowKnocking)
	assert.True(t, v9.RestrictedJoinRule)

	_, err = NewRoomVersionProfile("unknown-version")
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindUnsupportedRoomVersion, authErr.Kind)
}
