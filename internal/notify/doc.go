// Package notify delivers booking confirmations. Every implementation
// satisfies application.Notifier and is invoked once per admitted booking,
// off the request path.
package notify
