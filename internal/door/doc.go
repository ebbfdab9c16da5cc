// Package door stores doors, their lock state and their access schedules.
//
// A door is a two-state machine (locked, unlocked). Every transition records
// who caused it and when. The optional schedule holds one inclusive HH:MM
// window for weekdays (Monday to Friday) and one for weekends; a day class
// with no window is unrestricted.
package door
