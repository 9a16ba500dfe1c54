// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies why AuthCheck or a helper returned a fatal error
// rather than a verdict. Callers that need to distinguish a malformed PDU
// from an unsupported room version can switch on this.
type ErrorKind int

const (
	// KindInvalidPdu means the event itself is structurally wrong: a
	// required field is missing, or an identifier doesn't parse.
	KindInvalidPdu ErrorKind = iota
	// KindUnsupportedRoomVersion means the room version string isn't one
	// this package knows the rules for.
	KindUnsupportedRoomVersion
	// KindDeserialization means an event's content field didn't parse as
	// the JSON shape its event type requires.
	KindDeserialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPdu:
		return "invalid_pdu"
	case KindUnsupportedRoomVersion:
		return "unsupported_room_version"
	case KindDeserialization:
		return "deserialization"
	default:
		return "unknown"
	}
}

// AuthError is the fatal error type returned by this package's exported
// functions. It is never returned to signal "not allowed" (that is a
// plain false verdict), only to signal that no verdict could be computed
// at all.
type AuthError struct {
	Kind  ErrorKind
	cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("eventauth: %s: %v", e.Kind, e.cause)
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

func invalidPDU(format string, args ...any) error {
	return &AuthError{Kind: KindInvalidPdu, cause: errors.Errorf(format, args...)}
}

func unsupportedRoomVersion(id string) error {
	return &AuthError{Kind: KindUnsupportedRoomVersion, cause: errors.Errorf("room version %q is not supported", id)}
}

func deserializationError(field string, cause error) error {
	return &AuthError{Kind: KindDeserialization, cause: errors.Wrapf(cause, "field %q", field)}
}
