// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "encoding/json"

// Default power levels applied when content.power_levels is absent, or
// when an individual scalar field of it is absent. These match the
// values the Matrix specification assigns, not arbitrary defaults.
const (
	defaultBan           int64 = 50
	defaultKick          int64 = 50
	defaultRedact        int64 = 50
	defaultInvite        int64 = 50
	defaultStateDefault  int64 = 50
	defaultEventsDefault int64 = 0
	defaultUsersDefault  int64 = 0
)

// CreateContent is the parsed content of an m.room.create event.
type CreateContent struct {
	Creator     *string `json:"creator,omitempty"`
	RoomVersion *string `json:"room_version,omitempty"`
	MFederate   *bool   `json:"m.federate,omitempty"`
}

func parseCreateContent(raw []byte) (*CreateContent, error) {
	var c CreateContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, deserializationError("content", err)
	}
	return &c, nil
}

// federates reports the room's m.federate flag, false when absent.
func (c *CreateContent) federates() bool {
	if c == nil || c.MFederate == nil {
		return false
	}
	return *c.MFederate
}

// SignedThirdPartyInvite is the signed blob inside a member event's
// third_party_invite field.
type SignedThirdPartyInvite struct {
	MXID       string                       `json:"mxid"`
	Token      string                       `json:"token"`
	Signatures map[string]map[string]string `json:"signatures,omitempty"`
}

// ThirdPartyInviteRef is the content.third_party_invite field of an
// m.room.member event with membership "invite".
type ThirdPartyInviteRef struct {
	DisplayName string                 `json:"display_name,omitempty"`
	Signed      SignedThirdPartyInvite `json:"signed"`
}

// MemberContent is the parsed content of an m.room.member event.
type MemberContent struct {
	Membership       MembershipState      `json:"membership"`
	ThirdPartyInvite *ThirdPartyInviteRef `json:"third_party_invite,omitempty"`
}

func parseMemberContent(raw []byte) (*MemberContent, error) {
	var c MemberContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, deserializationError("content", err)
	}
	if c.Membership == "" {
		return nil, invalidPDU("member event content missing membership")
	}
	return &c, nil
}

// PublicKeyEntry is one entry of an m.room.third_party_invite event's
// public_keys list.
type PublicKeyEntry struct {
	PublicKey string `json:"public_key"`
}

// ThirdPartyInviteEventContent is the parsed content of an
// m.room.third_party_invite state event.
type ThirdPartyInviteEventContent struct {
	DisplayName string           `json:"display_name,omitempty"`
	PublicKey   string           `json:"public_key,omitempty"`
	PublicKeys  []PublicKeyEntry `json:"public_keys,omitempty"`
}

func parseThirdPartyInviteEventContent(raw []byte) (*ThirdPartyInviteEventContent, error) {
	var c ThirdPartyInviteEventContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, deserializationError("content", err)
	}
	return &c, nil
}

// NotificationsContent is the content.notifications field of an
// m.room.power_levels event.
type NotificationsContent struct {
	Room int64 `json:"room"`
}

// PowerLevelsContent is the parsed content of an m.room.power_levels
// event. Scalar fields are pointers so that the engine can distinguish
// "absent, use the Matrix default" from "explicitly set to a value that
// happens to equal the default" where the distinction matters (the
// Power-Levels Validator compares a scalar field only when both
// contents set it).
type PowerLevelsContent struct {
	UsersDefault  *int64                `json:"users_default,omitempty"`
	EventsDefault *int64                `json:"events_default,omitempty"`
	StateDefault  *int64                `json:"state_default,omitempty"`
	Ban           *int64                `json:"ban,omitempty"`
	Kick          *int64                `json:"kick,omitempty"`
	Redact        *int64                `json:"redact,omitempty"`
	Invite        *int64                `json:"invite,omitempty"`
	Users         map[string]int64      `json:"users,omitempty"`
	Events        map[string]int64      `json:"events,omitempty"`
	Notifications *NotificationsContent `json:"notifications,omitempty"`
}

func parsePowerLevelsContent(raw []byte) (*PowerLevelsContent, error) {
	var c PowerLevelsContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, deserializationError("content", err)
	}
	return &c, nil
}

func (p *PowerLevelsContent) banLevel() int64 {
	if p == nil || p.Ban == nil {
		return defaultBan
	}
	return *p.Ban
}

func (p *PowerLevelsContent) kickLevel() int64 {
	if p == nil || p.Kick == nil {
		return defaultKick
	}
	return *p.Kick
}

func (p *PowerLevelsContent) redactLevel() int64 {
	if p == nil || p.Redact == nil {
		return defaultRedact
	}
	return *p.Redact
}

func (p *PowerLevelsContent) inviteLevel() int64 {
	if p == nil || p.Invite == nil {
		return defaultInvite
	}
	return *p.Invite
}

func (p *PowerLevelsContent) stateDefaultLevel() int64 {
	if p == nil || p.StateDefault == nil {
		return defaultStateDefault
	}
	return *p.StateDefault
}

func (p *PowerLevelsContent) eventsDefaultLevel() int64 {
	if p == nil || p.EventsDefault == nil {
		return defaultEventsDefault
	}
	return *p.EventsDefault
}

func (p *PowerLevelsContent) usersDefaultLevel() int64 {
	if p == nil || p.UsersDefault == nil {
		return defaultUsersDefault
	}
	return *p.UsersDefault
}

// UserLevel returns user's effective power level, applying users_default
// when the user has no explicit entry.
func (p *PowerLevelsContent) UserLevel(user string) int64 {
	if p == nil {
		return defaultUsersDefault
	}
	if lvl, ok := p.Users[user]; ok {
		return lvl
	}
	return p.usersDefaultLevel()
}

// rawUserLevel returns the user's explicit power_levels.users entry
// without applying users_default, plus whether an explicit entry existed.
// The Membership Validator needs this three-way distinction (explicit /
// defaulted / truly absent power levels event) that UserLevel collapses.
func rawUserLevel(p *PowerLevelsContent, user string) (int64, bool) {
	if p == nil {
		return 0, false
	}
	lvl, ok := p.Users[user]
	return lvl, ok
}

// EventLevel returns the power level required to send an event of the
// given type, applying state_default/events_default as appropriate when
// there is no explicit per-type entry, and the PL-absent defaults from
// GetSendLevel when pl itself is nil.
func (p *PowerLevelsContent) EventLevel(t EventType, stateKey *string) int64 {
	return GetSendLevel(t, stateKey, p)
}

// RestrictedAllowRule is one entry of an m.room.join_rules event's
// restricted-join allow list.
type RestrictedAllowRule struct {
	RoomID string `json:"room_id,omitempty"`
}

// JoinRulesContent is the parsed content of an m.room.join_rules event.
type JoinRulesContent struct {
	JoinRule JoinRule              `json:"join_rule"`
	Allow    []RestrictedAllowRule `json:"allow,omitempty"`
}

func parseJoinRulesContent(raw []byte) (*JoinRulesContent, error) {
	var c JoinRulesContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, deserializationError("content", err)
	}
	return &c, nil
}
