// Package subscription manages the lifecycle of operations sent through a
// transport.Transport.
//
// # Operations
//
// Mutate and Query are one-shot: the transport invokes the callback exactly
// once and the returned Pending resolves to Done or Error. Watch streams
// Running results to a caller-supplied function until the transport sends a
// terminal status or the caller cancels the WatchHandle.
//
//	Created -> Pending -> {Done | Error}                 one-shot
//	Created -> Pending -> Running* -> {Done | Error}     watched
//	Pending | Running -> Cancelled                       watched, on Cancel
//
// # Callback ownership
//
// Every send inserts one entry into a registry keyed by a generated token.
// Intermediate Running callbacks look the entry up without removing it. A
// terminal callback, an explicit Cancel, or Manager.Close removes it, and
// only the first of these takes effect. Anything that arrives for a token
// no longer in the registry is discarded.
//
// Failures are reported once and never retried. A transport Error status
// surfaces as *errors.TransportError and unreadable result bytes as
// *errors.DecodeError; a watch keeps running after a decode failure on a
// Running result.
//
// # Dropped watches
//
// A WatchHandle holds only a weak reference to its Manager. If the handle
// becomes unreachable without being cancelled, a runtime cleanup cancels
// the watch on the transport.
package subscription
