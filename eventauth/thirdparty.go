// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "github.com/sirupsen/logrus"

// VerifyThirdPartyInvite reports whether a membership event inviting
// targetUser on behalf of sender, carrying tpi, is backed by a valid
// third-party invite. currentTPIEvent is the current
// m.room.third_party_invite state event for tpi's token, as selected by
// AuthTypesForEvent/the caller's state accessor; it may be nil.
//
// The target_user must match the signed mxid, the referenced
// third-party invite event must still be current under the signed token
// and must have been sent by the same sender, and the invite's token
// must match either a public_keys entry or the legacy top-level
// public_key field of that event. It does not verify any cryptographic
// signature; that is an external collaborator's responsibility, not
// this package's.
func VerifyThirdPartyInvite(targetUser *string, sender string, tpi *ThirdPartyInviteRef, currentTPIEvent Event) bool {
	if tpi == nil {
		return false
	}
	if targetUser == nil || *targetUser != tpi.Signed.MXID {
		logrus.Debug("eventauth: verify_third_party_invite: target_user does not match signed mxid")
		return false
	}
	if currentTPIEvent == nil {
		logrus.Debug("eventauth: verify_third_party_invite: no current third_party_invite event for token")
		return false
	}
	if currentTPIEvent.Sender() != sender {
		logrus.Debug("eventauth: verify_third_party_invite: third_party_invite event sender does not match")
		return false
	}
	if tpiStateKey := currentTPIEvent.StateKey(); tpiStateKey == nil || *tpiStateKey != tpi.Signed.Token {
		logrus.Debug("eventauth: verify_third_party_invite: third_party_invite event state key does not match token")
		return false
	}

	content, err := parseThirdPartyInviteEventContent(currentTPIEvent.Content())
	if err != nil {
		logrus.WithError(err).Debug("eventauth: verify_third_party_invite: failed to parse third_party_invite content")
		return false
	}

	if content.PublicKey == tpi.Signed.Token {
		return true
	}
	for _, entry := range content.PublicKeys {
		if entry.PublicKey == tpi.Signed.Token {
			return true
		}
	}
	return false
}
