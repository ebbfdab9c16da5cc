// Package alert raises and stores operator alerts.
//
// The Emitter is the only producer. It stamps each alert with an ID and the
// clock's time, persists it, logs it at a level matching its severity and
// forwards a telemetry point. Alert types map to a fixed severity through
// SeverityFor; types without a rule are low.
//
// Resolution is performed by the administration surface through
// Repository.Resolve.
package alert
