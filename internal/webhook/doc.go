// Package webhook delivers domain events to a user's registered automation
// endpoints.
//
// Delivery is best-effort: each matching webhook gets one POST, failures are
// logged and never returned, and nothing is retried or recorded. The
// Dispatcher performs one fan-out synchronously; the Queue runs fan-outs in
// the background so the mutation that triggered them never waits.
package webhook
