// Package events fans daemon events out to connected clients.
//
// The Hub keeps a set of subscribers behind one mutex and delivers messages
// best-effort: the subscriber set is snapshotted under the lock, delivery
// happens outside it, and a subscriber whose buffered channel is full is
// dropped rather than blocking the publisher. A periodic ping probe evicts
// abandoned connections. There is no replay buffer; messages published before
// a subscriber registers are never seen by it.
package events
