// Package clock abstracts wall time and one-shot timers so the reconnect
// loop and the liveness sweep can be driven by virtual time in tests.
//
// Real() is backed by github.com/jonboulle/clockwork; Wrap adapts any
// clockwork clock. Tests use Fake(start), whose Advance runs due callbacks
// synchronously so assertions can follow it directly:
//
//	clk := clock.Fake(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
//	monitor := liveness.New(store, alerts, clk, liveness.Config{Interval: time.Minute})
//	monitor.Start(ctx)
//	clk.Advance(3 * time.Minute) // sweeps fire synchronously
package clock
