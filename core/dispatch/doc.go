// Package dispatch turns a brew request into a validated job for a machine.
//
// The Manager loads the recipe, takes an inventory snapshot of the target
// machine and runs the brew validator. Only when the report is empty is the
// job handed to the Queue, exactly once. Rejections are returned as a value
// in Outcome, never as an error.
//
// Validation is advisory. The snapshot is not reserved, so two concurrent
// requests against the same machine can both pass against the same
// quantities. The machine is the final arbiter of what it can brew.
//
// Enqueueing is fire-and-forget: the Queue publishes the job and returns
// without waiting for the machine to acknowledge or start brewing.
package dispatch
