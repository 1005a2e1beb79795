// Package schedule implements the task scheduling engine: it converts a
// structured task description into one or more concrete time intervals on a
// calendar, subject to working-hour constraints and conflict policy.
//
// The engine is deliberately two-phase: the availability calculator generates
// candidate work windows WITHOUT subtracting existing busy events, and the
// conflict detector gates the chosen interval right before commit. Proposals
// may therefore legitimately collide with busy time; the collision surfaces as
// a Conflict result that the caller turns into a user confirmation, and only
// an explicit force re-invocation will write through it.
//
// All computations are stateless per call. Availability is a point-in-time
// snapshot of the store; the gap between snapshot and commit is accepted (the
// store remains the source of truth and a late conflict surfaces on the next
// read). Callers serialize requests per user and impose their own timeouts.
package schedule
