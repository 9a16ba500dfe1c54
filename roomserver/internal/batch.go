// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"sort"

	"github.com/matrix-org/util"
	"golang.org/x/sync/errgroup"

	"github.com/ike20013/roomauth/eventauth"
)

// AuthorizeBatch authorizes every event in events against the same
// state snapshot, fanning the per-event AuthCheck calls out across
// goroutines with errgroup: the engine is a pure function of its
// arguments and fetchState is read-only, so there's nothing in the
// engine itself that needs events serialized against each other. This
// is for a caller validating an already-assembled auth chain (a
// /send_join response, for instance) against one snapshot, not for
// InputRoomEvent's normal one-event-at-a-time path.
//
// verdicts[i] corresponds to events[i]. Every event's check runs to
// completion (AuthCheck does not observe the group's context); the first
// fatal error is returned once all checks have finished, and an event
// whose check failed keeps a false verdict.
func AuthorizeBatch(ctx context.Context, profile *eventauth.RoomVersionProfile, events []eventauth.Event, fetchState eventauth.StateAccessor, restrictedJoinAllowed eventauth.RestrictedJoinAllowedChecker) ([]bool, error) {
	verdicts := make([]bool, len(events))

	var ids []string
	for _, event := range events {
		ids = append(ids, event.EventID())
	}
	ids = ids[:util.SortAndUnique(sort.StringSlice(ids))]
	util.GetLogger(ctx).WithField("event_ids", ids).Debug("roomserver: authorizing batch")

	g, ctx := errgroup.WithContext(ctx)
	for i, event := range events {
		i, event := i, event
		g.Go(func() error {
			allowed, err := eventauth.AuthCheck(profile, event, nil, nil, fetchState, restrictedJoinAllowed)
			if err != nil {
				return err
			}
			verdicts[i] = allowed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return verdicts, err
	}
	return verdicts, nil
}
