// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package eventauth

import "github.com/sirupsen/logrus"

// lessThan reports whether a is less than b, treating a missing power
// level (nil) as less than any defined value and as equal to any other
// missing value.
func lessThan(a, b *int64) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	return *a < *b
}

// geThan reports whether a (possibly missing) power level is greater
// than or equal to the defined level b. A missing a is never >= a
// defined b.
func geThan(a *int64, b int64) bool {
	if a == nil {
		return false
	}
	return *a >= b
}

// CheckMembership reports whether memberEvent is an m.room.member event
// whose membership equals expected. Absence, a non-member event type,
// and unparseable content all report false rather than erroring; callers
// use this for "is this user currently joined" style questions where a
// missing or mangled membership event simply means "no".
func CheckMembership(memberEvent Event, expected MembershipState) bool {
	if memberEvent == nil || memberEvent.EventType() != EventTypeMember {
		return false
	}
	content, err := parseMemberContent(memberEvent.Content())
	if err != nil {
		return false
	}
	return content.Membership == expected
}

// membershipArgs bundles the inputs ValidMembershipChange needs to decide
// a single m.room.member transition.
type membershipArgs struct {
	Profile *RoomVersionProfile

	TargetUser string
	Sender     string

	Content *MemberContent

	// PrevEvent is the event this membership change directly follows in
	// the room DAG, if the caller has it. Only the bootstrap path reads
	// it: the room creator's very first membership event follows the
	// create event itself, before any join rules or power levels exist
	// to admit them.
	PrevEvent Event

	CurrentMembership *MembershipState // target's membership per the state snapshot, nil if none
	JoinRules         *JoinRulesContent

	// SenderIsJoined reports whether the sender currently holds "join"
	// membership in the room. Invite, kick, and ban all additionally
	// require this regardless of what power level the sender happens to
	// have on file (a departed moderator's old power entry does not let
	// them act on the room after they've left).
	SenderIsJoined bool

	// Power levels, resolved against the state snapshot's power_levels
	// event (nil power_levels event yields nil pointers per the
	// "missing compares less than any defined" rule).
	SenderPower *int64
	TargetPower *int64
	BanLevel    int64
	KickLevel   int64
	InviteLevel int64

	TPIVerified *bool // nil unless Content.ThirdPartyInvite is set; result of VerifyThirdPartyInvite

	// RestrictedJoinAllowed, when non-nil, answers whether the target is
	// allowed to join under the room's restricted join rule (the caller
	// has already checked the target's membership in the rooms named by
	// the rule's allow list). Only consulted when JoinRules.JoinRule is
	// "restricted" and Profile.RestrictedJoinRule is set ("knock_restricted"
	// is not recognised); nil falls back to invite-only behaviour.
	RestrictedJoinAllowed *bool
}

// ValidMembershipChange implements the Membership Transition Validator:
// given the proposed new membership event and surrounding state, it
// decides whether the transition is one the target's and sender's
// current memberships and power levels permit.
func ValidMembershipChange(args membershipArgs) bool {
	logger := logrus.WithFields(logrus.Fields{
		"target": args.TargetUser,
		"sender": args.Sender,
		"new":    args.Content.Membership,
	})

	// Bootstrap: the creator's initial membership event follows the
	// create event directly and is allowed unconditionally, since the
	// room has no state yet that could admit anyone.
	if args.PrevEvent != nil && args.PrevEvent.EventType() == EventTypeCreate && len(args.PrevEvent.PrevEvents()) == 0 {
		return true
	}

	var current MembershipState = MembershipLeave
	if args.CurrentMembership != nil {
		current = *args.CurrentMembership
	}

	switch args.Content.Membership {
	case MembershipJoin:
		if args.Sender != args.TargetUser {
			logger.Debug("eventauth: valid_membership_change: join must be self-initiated")
			return false
		}
		if current == MembershipBan {
			return false
		}
		return validJoinAgainstJoinRule(args, current, logger)

	case MembershipInvite:
		if args.Content.ThirdPartyInvite != nil {
			if current == MembershipBan {
				return false
			}
			if args.TPIVerified == nil || !*args.TPIVerified {
				logger.Debug("eventauth: valid_membership_change: third party invite did not verify")
				return false
			}
			// A verified third-party invite is accepted regardless of
			// the inviter's own membership or power: it is a distinct,
			// pre-authorized path into the room.
			return true
		}
		if current == MembershipJoin || current == MembershipBan {
			return false
		}
		if !args.SenderIsJoined {
			logger.Debug("eventauth: valid_membership_change: inviter is not joined to the room")
			return false
		}
		if !geThan(args.SenderPower, args.InviteLevel) {
			logger.Debug("eventauth: valid_membership_change: sender power below invite level")
			return false
		}
		return true

	case MembershipLeave:
		if args.Sender == args.TargetUser {
			// Self-leave: allowed from invite, join, or knock; leaving a
			// knock is a retraction and is always permitted.
			switch current {
			case MembershipInvite, MembershipJoin, MembershipKnock:
				return true
			default:
				return false
			}
		}
		// Other-initiated: a kick, gated by the sender's power relative
		// to both the kick level and the target; a banned target must
		// additionally be unbanned at ban level.
		if !args.SenderIsJoined {
			logger.Debug("eventauth: valid_membership_change: sender must be joined to kick or unban")
			return false
		}
		if current == MembershipBan && !geThan(args.SenderPower, args.BanLevel) {
			return false
		}
		if !geThan(args.SenderPower, args.KickLevel) {
			logger.Debug("eventauth: valid_membership_change: sender power below kick level")
			return false
		}
		if !lessThan(args.TargetPower, args.SenderPower) {
			logger.Debug("eventauth: valid_membership_change: target power not below sender power")
			return false
		}
		return true

	case MembershipBan:
		if !args.SenderIsJoined {
			logger.Debug("eventauth: valid_membership_change: sender must be joined to ban")
			return false
		}
		if !geThan(args.SenderPower, args.BanLevel) {
			logger.Debug("eventauth: valid_membership_change: sender power below ban level")
			return false
		}
		if !lessThan(args.TargetPower, args.SenderPower) {
			logger.Debug("eventauth: valid_membership_change: target power not below sender power")
			return false
		}
		return true

	case MembershipKnock:
		if args.Profile == nil || !args.Profile.AllowKnocking {
			return false
		}
		if args.Sender != args.TargetUser {
			return false
		}
		if current == MembershipBan || current == MembershipJoin || current == MembershipInvite {
			return false
		}
		if args.JoinRules == nil {
			return false
		}
		if args.JoinRules.JoinRule == JoinRuleKnock {
			return true
		}
		// Rooms under the restricted rule still accept knocks from users
		// the allow list can't vouch for.
		return args.JoinRules.JoinRule == JoinRuleRestricted && args.Profile.RestrictedJoinRule
	}

	return false
}

// validJoinAgainstJoinRule evaluates a self-join against the room's
// current join rule, including the restricted extension. current is the
// target's membership per the state snapshot; an absent join_rules event
// defaults to the invite rule.
func validJoinAgainstJoinRule(args membershipArgs, current MembershipState, logger *logrus.Entry) bool {
	rule := JoinRuleInvite
	if args.JoinRules != nil {
		rule = args.JoinRules.JoinRule
	}
	switch rule {
	case JoinRulePublic:
		return true
	case JoinRuleInvite:
		return current == MembershipJoin || current == MembershipInvite
	case JoinRuleRestricted:
		if args.Profile != nil && args.Profile.RestrictedJoinRule {
			if args.RestrictedJoinAllowed != nil && *args.RestrictedJoinAllowed {
				return true
			}
		}
		// No way to evaluate the allow list: behave like the invite
		// rule instead of admitting anyone.
		return current == MembershipJoin || current == MembershipInvite
	default:
		// knock, private, and anything unrecognised never admit a join
		// directly, whatever the target's current membership.
		logger.Debug("eventauth: valid_membership_change: join rule does not permit join")
		return false
	}
}
