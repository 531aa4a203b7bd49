// Package watcher tracks a security case after its initial page until the
// case closes, then performs a two-phase incident resolution: resolve the
// page the moment closure is observed, and finalize the incident note once a
// fixed settle window has let the case's summary stabilize.
//
// Each case id owns one durable State record and one pending wake-up slot.
// OnWakeUp is the sole driver of transitions (AWAITING_CLOSURE →
// CLOSURE_DETECTED → FINALIZING → TERMINATED); every non-terminal path
// re-arms exactly one future wake-up before returning, and termination is
// the only path that deletes state.
package watcher
