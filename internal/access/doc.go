// Package access authorises door access attempts.
//
// Evaluate is the decision itself: a pure function of the resolved door,
// user, permission and the current local time. Engine.Decide wraps it with
// the lookups and the consequences of a decision (one access log entry, an
// alert for unknown credentials, the door unlock and the command to the
// controller).
//
// An attempt is checked in a fixed order and the first failing check
// decides the reason:
//
//	door_not_found     the door does not exist
//	unauthorized_card  the card or user id resolves to nobody
//	user_inactive      the user is inactive or suspended
//	no_permission      no grant for the door, or the grant has expired
//	outside_schedule   the local time is outside the door's window
//
// Schedule windows are weekday (Monday to Friday) or weekend and compare
// zero-padded HH:MM strings with both bounds included. A grant with the
// schedule override flag skips the window check.
package access
