package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

// DefaultZooKeeperRoot is the parent node of every booking lock.
const DefaultZooKeeperRoot = "/booking_locks"

const lockPrefix = "lock-"

// zkConn is the subset of *zk.Conn used by ZooKeeper.
type zkConn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Delete(path string, version int32) error
}

// ZooKeeper is a distributed per-key lock built on ephemeral sequential
// nodes. Holders are ordered by their sequence number and each waiter
// watches only its predecessor.
type ZooKeeper struct {
	conn   zkConn
	root   string
	logger *slog.Logger
	closer func()
}

// ConnectZooKeeper dials servers and returns a lock rooted at DefaultZooKeeperRoot.
func ConnectZooKeeper(servers []string, sessionTimeout time.Duration, logger *slog.Logger) (*ZooKeeper, error) {
	if len(servers) == 0 {
		return nil, errors.New("locking: no zookeeper servers")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{logger}))
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper: %w", err)
	}
	lock := NewZooKeeper(conn, DefaultZooKeeperRoot, logger)
	lock.closer = conn.Close
	return lock, nil
}

// NewZooKeeper wraps an established connection.
func NewZooKeeper(conn zkConn, root string, logger *slog.Logger) *ZooKeeper {
	if root == "" {
		root = DefaultZooKeeperRoot
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ZooKeeper{conn: conn, root: root, logger: logger.With("component", "zookeeper_lock")}
}

// Close ends the session, which also drops any node still held.
func (z *ZooKeeper) Close() {
	if z.closer != nil {
		z.closer()
	}
}

// Lock blocks until the caller holds key or ctx is done.
func (z *ZooKeeper) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := z.root + "/" + url.PathEscape(key)
	if err := z.ensure(z.root); err != nil {
		return nil, err
	}
	if err := z.ensure(dir); err != nil {
		return nil, err
	}

	node, err := z.conn.CreateProtectedEphemeralSequential(dir+"/"+lockPrefix, nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("create lock node: %w", err)
	}
	release := func() {
		if err := z.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			z.logger.Warn("failed to delete lock node", "node", node, "error", err)
		}
	}

	if err := z.wait(ctx, dir, path.Base(node)); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (z *ZooKeeper) wait(ctx context.Context, dir, own string) error {
	for {
		children, _, err := z.conn.Children(dir)
		if err != nil {
			return fmt.Errorf("list lock nodes: %w", err)
		}
		sortBySequence(children)

		idx := slices.Index(children, own)
		switch {
		case idx < 0:
			return fmt.Errorf("lock node %s vanished", own)
		case idx == 0:
			return nil
		}

		exists, _, events, err := z.conn.ExistsW(dir + "/" + children[idx-1])
		if err != nil {
			return fmt.Errorf("watch predecessor: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (z *ZooKeeper) ensure(p string) error {
	_, err := z.conn.Create(p, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create %s: %w", p, err)
	}
	return nil
}

// sequenceOf extracts the counter zookeeper appends to sequential nodes.
// Protected nodes carry a random prefix, so the full name does not sort.
func sequenceOf(name string) (int64, bool) {
	i := strings.LastIndex(name, lockPrefix)
	if i < 0 {
		return 0, false
	}
	seq, err := strconv.ParseInt(name[i+len(lockPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func sortBySequence(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, aok := sequenceOf(names[i])
		b, bok := sequenceOf(names[j])
		if aok != bok {
			return aok
		}
		return a < b
	})
}

type zkLogger struct {
	logger *slog.Logger
}

func (l zkLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}
