// Package events decouples services from the side effects they trigger.
//
// A service emits an Event after its own work has committed; handlers such
// as the job dispatcher react to it. The service never learns which
// handlers exist, so adding a side effect does not touch the service.
package events
