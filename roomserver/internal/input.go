// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package internal implements the Room Input Pipeline: the caller that
// sits in front of the authorization engine, wiring a PDU through the
// state snapshot store, the engine's AuthCheck, and this module's
// metrics, logging and JetStream publication. None of the decision
// logic lives here; this package only ever calls eventauth and records
// what it returned.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matrix-org/util"
	"github.com/nats-io/nats.go"
	"github.com/opentracing/opentracing-go"

	"github.com/ike20013/roomauth/eventauth"
	"github.com/ike20013/roomauth/roomserver/storage/shared"
	"github.com/ike20013/roomauth/roomserver/storage/tables"
	"github.com/ike20013/roomauth/setup/jetstream"
)

// RestrictedJoinAllowedFunc resolves the restricted join rule's allow
// list against whatever membership source the caller has available
// (typically a query to other rooms' own current state); it is handed
// straight through to eventauth.AuthCheck.
type RestrictedJoinAllowedFunc = eventauth.RestrictedJoinAllowedChecker

// RoomInputAPI is the Room Input Pipeline. It owns no decision logic of
// its own. JetStream may be left nil, in which case verdict publication
// is simply skipped rather than erroring; tracing likewise defaults to
// the no-op global tracer until StartTracer is called. DB is required.
type RoomInputAPI struct {
	DB                    *shared.Database
	JetStream             nats.JetStreamContext
	TopicPrefix           string
	RestrictedJoinAllowed RestrictedJoinAllowedFunc
	EnableMetrics         bool
}

// NewRoomInputAPI constructs a RoomInputAPI. enableMetrics governs
// whether the constructor registers the Prometheus collectors and
// whether InputRoomEvent records its verdicts into them.
func NewRoomInputAPI(db *shared.Database, js nats.JetStreamContext, topicPrefix string, restrictedJoinAllowed RestrictedJoinAllowedFunc, enableMetrics bool) *RoomInputAPI {
	if enableMetrics {
		registerMetrics()
	}
	return &RoomInputAPI{
		DB:                    db,
		JetStream:             js,
		TopicPrefix:           topicPrefix,
		RestrictedJoinAllowed: restrictedJoinAllowed,
		EnableMetrics:         enableMetrics,
	}
}

// inputVerdict is the JetStream message body published once per
// InputRoomEvent call.
type inputVerdict struct {
	RoomID  string `json:"room_id"`
	EventID string `json:"event_id"`
	Allowed bool   `json:"allowed"`
}

// InputRoomEvent authorizes event against roomID's current state
// snapshot and, if allowed, persists it and advances current state.
// It returns the engine's verdict; a non-nil error with a false verdict
// means the event could not be evaluated at all (see
// eventauth.AuthError), not that it was denied. A non-nil error with a
// true verdict means the event was allowed but could not be stored.
func (r *RoomInputAPI) InputRoomEvent(ctx context.Context, event *tables.PDU) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RoomInputAPI.InputRoomEvent")
	defer span.Finish()
	span.SetTag("room_id", event.RoomID())
	span.SetTag("event_id", event.EventID())

	start := time.Now()
	logger := util.GetLogger(ctx).WithFields(map[string]interface{}{
		"trace_id":   uuid.New().String(),
		"room_id":    event.RoomID(),
		"event_id":   event.EventID(),
		"event_type": event.EventType(),
		"sender":     event.Sender(),
	})

	fetchState := r.DB.StateAccessor(ctx, event.RoomID())
	profile, err := r.roomVersionProfile(fetchState)
	if err != nil {
		logger.WithError(err).Warn("roomserver: input: could not determine room version")
		return false, err
	}

	// A membership event's verdict can depend on the event it follows
	// (the room creator's first join directly follows the create event),
	// so hand the engine the first prev event when we have it stored.
	var prevEvent eventauth.Event
	if event.EventType() == eventauth.EventTypeMember && len(event.PrevEvents()) > 0 {
		if prev, err := r.DB.Event(ctx, event.PrevEvents()[0]); err == nil && prev != nil {
			prevEvent = prev
		}
	}

	allowed, err := eventauth.AuthCheck(profile, event, prevEvent, nil, fetchState, r.RestrictedJoinAllowed)
	if err != nil {
		span.SetTag("error", true)
		logger.WithError(err).Error("roomserver: input: auth_check failed")
		r.recordVerdict("error", start)
		return false, err
	}

	r.recordVerdict(verdictLabel(allowed), start)
	logger.WithField("allowed", allowed).Info("roomserver: input: processed event")

	if allowed {
		if err := r.DB.StoreEvent(ctx, event); err != nil {
			return allowed, fmt.Errorf("roomserver: input: store event: %w", err)
		}
	}

	if err := r.publishVerdict(ctx, event, allowed); err != nil {
		logger.WithError(err).Warn("roomserver: input: failed to publish verdict")
	}

	return allowed, nil
}

// roomVersionProfile resolves the RoomVersionProfile for roomID's
// create event as found through fetchState. When the snapshot has no
// create event yet (as when the event being authorized is the create
// event itself), room version "1" is used; AuthCheck's create-event
// rules check the create event's own room_version themselves.
func (r *RoomInputAPI) roomVersionProfile(fetchState eventauth.StateAccessor) (*eventauth.RoomVersionProfile, error) {
	createEvent := fetchState(eventauth.EventTypeCreate, "")
	if createEvent == nil {
		return eventauth.NewRoomVersionProfile("1")
	}
	var content struct {
		RoomVersion *string `json:"room_version,omitempty"`
	}
	if err := json.Unmarshal(createEvent.Content(), &content); err != nil {
		return nil, fmt.Errorf("roomserver: input: parse create content: %w", err)
	}
	version := "1"
	if content.RoomVersion != nil {
		version = *content.RoomVersion
	}
	return cachedRoomVersionProfile(version)
}

func (r *RoomInputAPI) recordVerdict(verdict string, start time.Time) {
	if !r.EnableMetrics {
		return
	}
	inputRoomEventVerdicts.WithLabelValues(verdict).Inc()
	inputRoomEventDuration.WithLabelValues(verdict).Observe(time.Since(start).Seconds())
}

func verdictLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// publishVerdict is a no-op when r.JetStream is nil, so callers that
// haven't wired a NATS connection (unit tests, a caller that only
// wants the verdict) don't have to fake one.
func (r *RoomInputAPI) publishVerdict(ctx context.Context, event *tables.PDU, allowed bool) error {
	if r.JetStream == nil {
		return nil
	}
	body, err := json.Marshal(inputVerdict{RoomID: event.RoomID(), EventID: event.EventID(), Allowed: allowed})
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	msg := &nats.Msg{
		Subject: r.TopicPrefix + jetstream.TopicOutputRoomEvent,
		Header:  nats.Header{},
		Data:    body,
	}
	msg.Header.Set(jetstream.RoomID, event.RoomID())
	msg.Header.Set(jetstream.EventID, event.EventID())
	msg.Header.Set(jetstream.Sender, event.Sender())
	_, err = r.JetStream.PublishMsg(msg, nats.Context(ctx))
	return err
}
