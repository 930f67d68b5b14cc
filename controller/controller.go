// Package controller implements the per-call status holder that
// accompanies every krpc call: whether it failed, and why. The
// cancellation trio exists so callers can be written against a
// generated-stub-style calling convention; krpc never cancels a call,
// so those methods are no-ops.
package controller

// Controller tracks the outcome of a single RPC call.
type Controller struct {
	failed  bool
	errText string
}

// New returns a Controller in its initial, non-failed state.
func New() *Controller {
	return &Controller{}
}

// Reset clears any failure recorded on the controller.
func (c *Controller) Reset() {
	c.failed = false
	c.errText = ""
}

// Failed reports whether the call this controller tracks failed.
func (c *Controller) Failed() bool {
	return c.failed
}

// ErrorText returns the failure reason, or "" if the call succeeded.
func (c *Controller) ErrorText() string {
	return c.errText
}

// SetFailed marks the call as failed with the given reason.
func (c *Controller) SetFailed(reason string) {
	c.failed = true
	c.errText = reason
}

// StartCancel is a no-op: krpc does not support call cancellation.
func (c *Controller) StartCancel() {}

// IsCanceled always reports false: krpc does not support call
// cancellation.
func (c *Controller) IsCanceled() bool {
	return false
}

// NotifyOnCancel is a no-op: krpc does not support call cancellation.
func (c *Controller) NotifyOnCancel(callback func()) {}
