// Package events defines the events published on the event bus by the
// dispatch manager, the vote aggregator and the machine services.
//
// Available event types:
//   - DispatchEvent: result of a brew dispatch request
//   - VoteEvent: a vote was created or replaced
//   - SyncEvent: container or favourites state was pushed to a machine
package events
