// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

// GetSendLevel returns the power level required to send an event of type
// t with the given state key (nil for non-state events), given pl: the
// room's current power_levels content, or nil if the room has none.
//
// When pl is nil, the required level is 50 for state events and 0 for
// everything else. When pl is present, an explicit events[t] entry wins;
// otherwise state_default applies to state events and events_default to
// everything else.
func GetSendLevel(t EventType, stateKey *string, pl *PowerLevelsContent) int64 {
	if pl == nil {
		if stateKey != nil {
			return defaultStateDefault
		}
		return defaultEventsDefault
	}
	if lvl, ok := pl.Events[string(t)]; ok {
		return lvl
	}
	if stateKey != nil {
		return pl.stateDefaultLevel()
	}
	return pl.eventsDefaultLevel()
}
