// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package caching provides a read-through cache in front of the state
// snapshot store, so that repeated AuthCheck calls against the same room
// don't each round-trip to the database for power_levels, join_rules,
// and the other handful of state events every authorization decision
// reads.
package caching

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/ike20013/roomauth/eventauth"
)

// RoomServerCaches is the set of caches the state snapshot store
// consults before hitting the database.
type RoomServerCaches interface {
	GetStateEvent(roomID string, eventType eventauth.EventType, stateKey string) (eventauth.Event, bool)
	StoreStateEvent(roomID string, eventType eventauth.EventType, stateKey string, event eventauth.Event)
	InvalidateRoom(roomID string)
}

// Caches is a ristretto-backed RoomServerCaches. Keys are room-scoped so
// a single cache instance can safely serve every room's snapshot.
type Caches struct {
	stateEvents *ristretto.Cache
}

// NewRoomServerCaches constructs a Caches sized for maxEntries distinct
// state-event lookups. A maxEntries of zero disables caching, returning
// a Caches that always misses, useful for tests that want predictable
// database round-trips.
func NewRoomServerCaches(maxEntries int64) (*Caches, error) {
	if maxEntries <= 0 {
		return &Caches{}, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("caching: new ristretto cache: %w", err)
	}
	return &Caches{stateEvents: cache}, nil
}

func stateEventKey(roomID string, eventType eventauth.EventType, stateKey string) string {
	return roomID + "\x1f" + string(eventType) + "\x1f" + stateKey
}

func (c *Caches) GetStateEvent(roomID string, eventType eventauth.EventType, stateKey string) (eventauth.Event, bool) {
	if c.stateEvents == nil {
		return nil, false
	}
	v, ok := c.stateEvents.Get(stateEventKey(roomID, eventType, stateKey))
	if !ok {
		return nil, false
	}
	event, ok := v.(eventauth.Event)
	return event, ok
}

func (c *Caches) StoreStateEvent(roomID string, eventType eventauth.EventType, stateKey string, event eventauth.Event) {
	if c.stateEvents == nil {
		return
	}
	c.stateEvents.Set(stateEventKey(roomID, eventType, stateKey), event, 1)
}

func (c *Caches) InvalidateRoom(roomID string) {
	if c.stateEvents == nil {
		return
	}
	// ristretto has no prefix-delete and keys are not tracked per room,
	// so invalidating one room clears the cached state of every room.
	c.stateEvents.Clear()
}
