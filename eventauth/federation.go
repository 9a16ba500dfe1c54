// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "github.com/sirupsen/logrus"

// CanFederate reports whether a room's creation event permits the room
// to be used over federation. content.m.federate is read as a real JSON
// boolean; when the field or the create event itself is absent, or the
// create content cannot be parsed, the room does not federate.
func CanFederate(fetchState StateAccessor) bool {
	createEvent := fetchState(EventTypeCreate, "")
	if createEvent == nil {
		logrus.Warn("eventauth: can_federate: no create event in state")
		return false
	}
	create, err := parseCreateContent(createEvent.Content())
	if err != nil {
		logrus.WithError(err).Warn("eventauth: can_federate: failed to parse create content")
		return false
	}
	return create.federates()
}
