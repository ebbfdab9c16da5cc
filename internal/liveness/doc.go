// Package liveness detects door controllers that stop sending heartbeats.
//
// Heartbeat and status handlers call Touch; a sweep on a fixed interval
// marks every device silent for longer than the threshold (three intervals
// by default) offline in storage, raises one warning-level device_offline
// alert and forgets it. Sweeps are chained clock timers, so tests drive them
// with a fake clock.
package liveness
