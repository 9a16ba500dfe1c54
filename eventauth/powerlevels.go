// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "github.com/sirupsen/logrus"

// CheckPowerLevels validates a proposed m.room.power_levels event against
// the room's previous one. It returns nil when no verdict can be computed
// (the event isn't an m.room.power_levels event, or either event's
// content fails to parse); AuthCheck treats nil as a denial. A state key
// other than "" is a false verdict, and with no previous power_levels
// event to compare against the verdict is true; otherwise the two
// contents are compared.
//
// senderPower is the sender's power level under the PREVIOUS power_levels
// event, already resolved by the caller (the Authorization Checker) so
// that this function stays a pure comparison of two contents.
func CheckPowerLevels(profile *RoomVersionProfile, powerEvent Event, previousPowerEvent Event, senderPower int64) *bool {
	if powerEvent.EventType() != EventTypePowerLevels {
		return nil
	}
	if sk := powerEvent.StateKey(); sk == nil || *sk != "" {
		logrus.Debug("eventauth: check_power_levels: state key must be empty string")
		no := false
		return &no
	}
	if previousPowerEvent == nil {
		yes := true
		return &yes
	}

	newContent, err := parsePowerLevelsContent(powerEvent.Content())
	if err != nil {
		logrus.WithError(err).Warn("eventauth: check_power_levels: failed to parse new content")
		return nil
	}
	oldContent, err := parsePowerLevelsContent(previousPowerEvent.Content())
	if err != nil {
		logrus.WithError(err).Warn("eventauth: check_power_levels: failed to parse previous content")
		return nil
	}

	deny := false

	// A user may never set another user's power level above their own,
	// nor change the level of a user who is currently at their own level
	// (other than their own). A missing entry compares strictly below any
	// defined value, so only explicit entries can trip either rule.
	users := make(map[string]bool)
	for u := range oldContent.Users {
		users[u] = true
	}
	for u := range newContent.Users {
		users[u] = true
	}
	for u := range users {
		oldLevel, oldOK := rawUserLevel(oldContent, u)
		newLevel, newOK := rawUserLevel(newContent, u)
		if oldOK && newOK && oldLevel == newLevel {
			continue
		}
		if u != powerEvent.Sender() && oldOK && oldLevel == senderPower {
			logrus.WithFields(logrus.Fields{"user": u}).Info("eventauth: check_power_levels: cannot change a peer at the sender's own level")
			return &deny
		}
		if (oldOK && oldLevel > senderPower) || (newOK && newLevel > senderPower) {
			logrus.WithFields(logrus.Fields{"user": u}).Info("eventauth: check_power_levels: user level change exceeds sender power")
			return &deny
		}
	}

	// Likewise for the per-event-type send levels.
	eventTypes := make(map[string]bool)
	for t := range oldContent.Events {
		eventTypes[t] = true
	}
	for t := range newContent.Events {
		eventTypes[t] = true
	}
	for t := range eventTypes {
		oldLevel, oldOK := oldContent.Events[t]
		newLevel, newOK := newContent.Events[t]
		if oldOK && newOK && oldLevel == newLevel {
			continue
		}
		if (oldOK && oldLevel > senderPower) || (newOK && newLevel > senderPower) {
			logrus.WithFields(logrus.Fields{"event_type": t}).Info("eventauth: check_power_levels: event level change exceeds sender power")
			return &deny
		}
	}

	// The named scalar fields are checked whenever both sides set them
	// explicitly, whether or not the value changed: a sender may not
	// confirm a level above their own power either.
	scalarChecks := []struct {
		name     string
		oldValue *int64
		newValue *int64
	}{
		{"ban", oldContent.Ban, newContent.Ban},
		{"kick", oldContent.Kick, newContent.Kick},
		{"redact", oldContent.Redact, newContent.Redact},
		{"invite", oldContent.Invite, newContent.Invite},
		{"state_default", oldContent.StateDefault, newContent.StateDefault},
		{"events_default", oldContent.EventsDefault, newContent.EventsDefault},
		{"users_default", oldContent.UsersDefault, newContent.UsersDefault},
	}
	for _, c := range scalarChecks {
		if c.oldValue == nil || c.newValue == nil {
			continue
		}
		if *c.oldValue > senderPower || *c.newValue > senderPower {
			logrus.WithFields(logrus.Fields{"field": c.name}).Info("eventauth: check_power_levels: scalar field level exceeds sender power")
			return &deny
		}
	}

	if profile != nil && profile.LimitNotificationsPowerLevels {
		oldRoom := int64(defaultStateDefault)
		if oldContent.Notifications != nil {
			oldRoom = oldContent.Notifications.Room
		}
		newRoom := int64(defaultStateDefault)
		if newContent.Notifications != nil {
			newRoom = newContent.Notifications.Room
		}
		if oldRoom != newRoom && (oldRoom > senderPower || newRoom > senderPower) {
			logrus.Info("eventauth: check_power_levels: notifications.room change exceeds sender power")
			return &deny
		}
	}

	allow := true
	return &allow
}
