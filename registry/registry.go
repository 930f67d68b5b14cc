// Package registry implements krpc's name registry client: a thin
// coordination-service abstraction backed by etcd.
//
// Node lifetime: the persistent "/service" parent uses NodePersistent
// (a Put guarded so that an existing key is left as it is); the ephemeral
// "/service/method" leaf uses NodeEphemeral, attached to a lease tied
// to the single session Connect establishes, and is removed
// automatically when that session ends.
package registry

import "context"

// NodeFlag selects a created node's lifetime.
type NodeFlag int

const (
	// NodePersistent nodes outlive the creating session (the
	// "/service_name" parent).
	NodePersistent NodeFlag = iota
	// NodeEphemeral nodes are removed automatically when the creating
	// session ends (the "/service_name/method_name" leaf).
	NodeEphemeral
)

// Registry is krpc's coordination-service client interface.
type Registry interface {
	// Connect establishes a session. It blocks until the session is
	// live or ctx's deadline/the 6-second session timeout elapses.
	Connect(ctx context.Context) error

	// CreateNode creates path with the given data and lifetime. A
	// NodePersistent create at an already-existing path is a no-op. A
	// NodeEphemeral create failure is treated as fatal by callers that
	// register server methods.
	CreateNode(ctx context.Context, path string, data []byte, flag NodeFlag) error

	// Get returns path's data, or nil with no error if path does not
	// exist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Close releases the session and any resources it holds.
	Close() error
}
