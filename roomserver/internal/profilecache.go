// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ike20013/roomauth/eventauth"
)

// roomVersionProfiles memoizes NewRoomVersionProfile: the set of room
// version identifiers in practice is tiny and fixed, so re-deriving the
// same feature-flag struct on every InputRoomEvent call is pure waste.
var roomVersionProfiles = gocache.New(24*time.Hour, time.Hour)

// cachedRoomVersionProfile is NewRoomVersionProfile fronted by an
// in-memory TTL cache keyed on the room version string.
func cachedRoomVersionProfile(version string) (*eventauth.RoomVersionProfile, error) {
	if cached, ok := roomVersionProfiles.Get(version); ok {
		return cached.(*eventauth.RoomVersionProfile), nil
	}
	profile, err := eventauth.NewRoomVersionProfile(version)
	if err != nil {
		return nil, err
	}
	roomVersionProfiles.Set(version, profile, gocache.DefaultExpiration)
	return profile, nil
}
