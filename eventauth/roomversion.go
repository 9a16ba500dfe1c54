// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

// RoomVersionProfile records which variant auth rules a room version
// turns on. It is a pure feature-flag record, computed once per room
// version string and then consulted by the rest of the package; it never
// changes for the lifetime of a room.
type RoomVersionProfile struct {
	// SpecialCaseAliasesAuth enables the legacy m.room.aliases
	// special-case in the Authorization Checker (room versions 1-5).
	SpecialCaseAliasesAuth bool
	// ExtraRedactionChecks enables the Redaction Checker's additional
	// redact-level-or-same-server rule (room versions 3+).
	ExtraRedactionChecks bool
	// LimitNotificationsPowerLevels enables the Power-Levels Validator's
	// notifications.room check (room version 6+).
	LimitNotificationsPowerLevels bool
	// AllowKnocking enables the knock membership transitions (room
	// version 7+).
	AllowKnocking bool
	// RestrictedJoinRule enables the restricted join rule (room version
	// 8+). The knock_restricted join rule is not recognised: a join_rules
	// event naming it admits neither joins nor knocks.
	RestrictedJoinRule bool
}

// NewRoomVersionProfile builds the feature-flag record for a room version
// identifier, following the version table the Matrix specification
// defines. Unknown identifiers are rejected rather than guessed at.
func NewRoomVersionProfile(id string) (*RoomVersionProfile, error) {
	switch id {
	case "1", "2":
		return &RoomVersionProfile{
			SpecialCaseAliasesAuth: true,
		}, nil
	case "3", "4", "5":
		return &RoomVersionProfile{
			SpecialCaseAliasesAuth: true,
			ExtraRedactionChecks:   true,
		}, nil
	case "6":
		return &RoomVersionProfile{
			ExtraRedactionChecks:          true,
			LimitNotificationsPowerLevels: true,
		}, nil
	case "7":
		return &RoomVersionProfile{
			ExtraRedactionChecks:          true,
			LimitNotificationsPowerLevels: true,
			AllowKnocking:                 true,
		}, nil
	case "8", "9", "10", "11":
		return &RoomVersionProfile{
			ExtraRedactionChecks:          true,
			LimitNotificationsPowerLevels: true,
			AllowKnocking:                 true,
			RestrictedJoinRule:            true,
		}, nil
	default:
		return nil, unsupportedRoomVersion(id)
	}
}
