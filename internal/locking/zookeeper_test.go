package locking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
)

// fakeZK is an in-memory znode tree supporting sequential nodes and
// deletion watches.
type fakeZK struct {
	mu       sync.Mutex
	nodes    map[string]bool
	seq      map[string]int
	watchers map[string][]chan zk.Event
	created  int
}

func newFakeZK() *fakeZK {
	return &fakeZK{nodes: map[string]bool{}, seq: map[string]int{}, watchers: map[string][]chan zk.Event{}}
}

func (f *fakeZK) Create(p string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[p] {
		return "", zk.ErrNodeExists
	}
	f.nodes[p] = true
	return p, nil
}

func (f *fakeZK) CreateProtectedEphemeralSequential(p string, data []byte, acl []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := p[:strings.LastIndex(p, "/")]
	prefix := p[strings.LastIndex(p, "/")+1:]
	n := f.seq[dir]
	f.seq[dir]++
	f.created++
	// Descending guids make lexical order disagree with sequence order.
	guid := fmt.Sprintf("%032x", 1<<20-n)
	node := fmt.Sprintf("%s/_c_%s-%s%010d", dir, guid, prefix, n)
	f.nodes[node] = true
	return node, nil
}

func (f *fakeZK) Children(p string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for node := range f.nodes {
		if strings.HasPrefix(node, p+"/") && !strings.Contains(node[len(p)+1:], "/") {
			out = append(out, node[len(p)+1:])
		}
	}
	return out, &zk.Stat{}, nil
}

func (f *fakeZK) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	if !f.nodes[p] {
		return false, nil, ch, nil
	}
	f.watchers[p] = append(f.watchers[p], ch)
	return true, &zk.Stat{}, ch, nil
}

func (f *fakeZK) Delete(p string, version int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[p] {
		return zk.ErrNoNode
	}
	delete(f.nodes, p)
	for _, ch := range f.watchers[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
	}
	delete(f.watchers, p)
	return nil
}

func (f *fakeZK) lockNodes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for node := range f.nodes {
		if strings.Contains(node, lockPrefix) {
			count++
		}
	}
	return count
}

func TestSequenceOrdering(t *testing.T) {
	t.Parallel()

	names := []string{
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
		"_c_aaaa-lock-0000000001",
		"garbage",
	}
	sortBySequence(names)

	want := []string{"_c_aaaa-lock-0000000001", "_c_ffff-lock-0000000003", "_c_0000-lock-0000000010", "garbage"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("position %d: got %q want %q (all %v)", i, names[i], want[i], names)
		}
	}

	if _, ok := sequenceOf("lock-abc"); ok {
		t.Fatalf("expected non-numeric suffix to be rejected")
	}
}

func TestZooKeeperLockIsExclusive(t *testing.T) {
	t.Parallel()

	conn := newFakeZK()
	lock := NewZooKeeper(conn, "", nil)

	var (
		wg      sync.WaitGroup
		guard   sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.Lock(context.Background(), "2024-06-01|19h30")
			if err != nil {
				t.Errorf("Lock returned error: %v", err)
				return
			}
			guard.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			guard.Unlock()

			time.Sleep(time.Millisecond)

			guard.Lock()
			inside--
			guard.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected exclusive holders, saw %d", maxSeen)
	}
	if n := conn.lockNodes(); n != 0 {
		t.Fatalf("expected every lock node deleted, %d remain", n)
	}
}

func TestZooKeeperLockTimeoutRemovesNode(t *testing.T) {
	t.Parallel()

	conn := newFakeZK()
	lock := NewZooKeeper(conn, "/test_locks", nil)

	release, err := lock.Lock(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lock.Lock(ctx, "2024-06-01"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := conn.lockNodes(); n != 1 {
		t.Fatalf("expected only the holder's node, got %d", n)
	}
}

func TestZooKeeperLockAgainstServer(t *testing.T) {
	servers := os.Getenv("BOOKING_TEST_ZK_SERVERS")
	if servers == "" {
		t.Skip("BOOKING_TEST_ZK_SERVERS not set")
	}

	lock, err := ConnectZooKeeper(strings.Split(servers, ","), 5*time.Second, nil)
	if err != nil {
		t.Fatalf("ConnectZooKeeper returned error: %v", err)
	}
	defer lock.Close()

	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	release, err := lock.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := lock.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected contention, got %v", err)
	}
	release()

	again, err := lock.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	again()
}
