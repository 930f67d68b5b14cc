package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// connectTimeout is the session timeout: it bounds how long Connect
// waits for the session to come up and is the TTL of the session lease.
const connectTimeout = 6 * time.Second

// ErrConnectTimeout is returned when the session fails to reach the
// connected state within connectTimeout.
var ErrConnectTimeout = errors.New("registry: connect timed out")

// ErrNotConnected is returned by CreateNode/Get when called before a
// successful Connect.
var ErrNotConnected = errors.New("registry: not connected")

// EtcdRegistry implements Registry over etcd's v3 client.
//
// Connect's blocking handshake is built from a mutex and a sync.Cond
// signaled by a watcher goroutine that consumes the session's keepalive
// responses, rather than relying on clientv3's own dial blocking. Get
// is serialized by the same mutex, held for the duration of the call.
type EtcdRegistry struct {
	endpoints []string
	logger    *zap.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	connected bool
	aborted   bool

	client  *clientv3.Client
	leaseID clientv3.LeaseID
}

// NewEtcdRegistry creates a registry bound to the given etcd endpoints.
// Connect must be called before CreateNode/Get are used.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) *EtcdRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &EtcdRegistry{endpoints: endpoints, logger: logger}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Connect dials etcd and blocks until the client reports a healthy
// connection or connectTimeout elapses.
func (r *EtcdRegistry) Connect(ctx context.Context) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   r.endpoints,
		DialTimeout: connectTimeout,
	})
	if err != nil {
		return fmt.Errorf("registry: dial: %w", err)
	}
	r.client = cli

	lease, err := cli.Grant(ctx, int64(connectTimeout/time.Second))
	if err != nil {
		cli.Close()
		return fmt.Errorf("registry: grant lease: %w", err)
	}
	r.leaseID = lease.ID

	keepAlive, err := cli.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		cli.Close()
		return fmt.Errorf("registry: keepalive: %w", err)
	}
	go r.watchSession(keepAlive)

	// The watcher goroutine signals r.cond once the first keepalive
	// response proves the session is live.
	done := make(chan struct{})
	go func() {
		r.mu.Lock()
		for !r.connected && !r.aborted {
			r.cond.Wait()
		}
		connected := r.connected
		r.mu.Unlock()
		if connected {
			close(done)
		}
	}()

	select {
	case <-done:
		r.logger.Info("registry connected", zap.Strings("endpoints", r.endpoints))
		return nil
	case <-time.After(connectTimeout):
		r.abort()
		return ErrConnectTimeout
	case <-ctx.Done():
		r.abort()
		return ctx.Err()
	}
}

// abort wakes a waiting connect handshake goroutine so it can exit
// without having reached the connected state, avoiding a leaked
// goroutine blocked in cond.Wait forever.
func (r *EtcdRegistry) abort() {
	r.mu.Lock()
	r.aborted = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// watchSession is the watcher goroutine: the first keepalive response
// proves the session reached etcd and is alive. Subsequent responses
// are drained to keep the lease alive for the registry's lifetime.
func (r *EtcdRegistry) watchSession(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for range ch {
		r.mu.Lock()
		if !r.connected {
			r.connected = true
			r.cond.Broadcast()
		}
		r.mu.Unlock()
	}
	// Channel closed: the lease expired or the session died. Any future
	// CreateNode(NodeEphemeral) calls will fail against a dead lease,
	// which callers are expected to treat as fatal.
}

// CreateNode creates path with the lifetime flag selects.
func (r *EtcdRegistry) CreateNode(ctx context.Context, path string, data []byte, flag NodeFlag) error {
	if r.client == nil {
		return ErrNotConnected
	}
	if flag == NodePersistent {
		// Put only if the key does not exist yet, so a persistent create
		// on an existing path leaves it untouched.
		_, err := r.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
			Then(clientv3.OpPut(path, string(data))).
			Commit()
		if err != nil {
			return fmt.Errorf("registry: create %s: %w", path, err)
		}
		return nil
	}
	// An ephemeral leaf is always (re)written under this session's lease.
	if _, err := r.client.Put(ctx, path, string(data), clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("registry: create %s: %w", path, err)
	}
	return nil
}

// Get returns path's stored value, or nil with no error if absent.
// Concurrent calls are serialized by a process-wide mutex held for the
// duration of the underlying etcd call.
func (r *EtcdRegistry) Get(ctx context.Context, path string) ([]byte, error) {
	if r.client == nil {
		return nil, ErrNotConnected
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("registry: get %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return resp.Kvs[0].Value, nil
}

// Close revokes the session lease (removing every ephemeral node it
// owns) and closes the underlying etcd client.
func (r *EtcdRegistry) Close() error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = r.client.Revoke(ctx, r.leaseID)
	return r.client.Close()
}
