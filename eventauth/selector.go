// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

// AuthTypesForEvent returns the set of (event type, state key) tuples
// whose current state events an event of the given shape needs present
// in order for AuthCheck to evaluate it. Callers use this to decide which
// state to fetch or attach as auth_events before submitting an event.
//
// m.room.create events need no auth events at all. Every other event
// needs the room's power levels, the sender's own membership, and the
// create event, in that order. m.room.member events additionally need
// the join rules (for joins and invites), the target's membership, and,
// only when the membership is "invite" and carries a third_party_invite
// field referencing a token, the corresponding
// m.room.third_party_invite state event. When the member content fails
// to parse, only the base set is returned; AuthCheck rejects the event
// later, so there is nothing more to fetch.
func AuthTypesForEvent(kind EventType, sender string, stateKey *string, content []byte) []StateKeyTuple {
	if kind == EventTypeCreate {
		return nil
	}

	seen := make(map[StateKeyTuple]bool)
	var out []StateKeyTuple
	add := func(t StateKeyTuple) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	add(StateKeyTuple{Type: EventTypePowerLevels, StateKey: ""})
	add(StateKeyTuple{Type: EventTypeMember, StateKey: sender})
	add(StateKeyTuple{Type: EventTypeCreate, StateKey: ""})

	if kind != EventTypeMember {
		return out
	}

	member, err := parseMemberContent(content)
	if err != nil {
		return out
	}
	if stateKey == nil {
		return out
	}

	if member.Membership == MembershipJoin || member.Membership == MembershipInvite {
		add(StateKeyTuple{Type: EventTypeJoinRules, StateKey: ""})
	}
	add(StateKeyTuple{Type: EventTypeMember, StateKey: *stateKey})

	if member.Membership == MembershipInvite && member.ThirdPartyInvite != nil {
		token := member.ThirdPartyInvite.Signed.Token
		if token != "" {
			add(StateKeyTuple{Type: EventTypeThirdPartyInvite, StateKey: token})
		}
	}

	return out
}
