package lock

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/core/domain"
)

const (
	DefaultZookeeperRoot = "/order_stock_locks"

	lockNodePrefix = "lock-"
	sequenceDigits = 10
)

// ZookeeperLocker implements the ephemeral sequential node recipe: the
// holder is the node with the lowest sequence under the key's path, and
// every waiter watches its predecessor only. Session loss removes the
// holder's node.
type ZookeeperLocker struct {
	conn        *zk.Conn
	root        string
	waitTimeout time.Duration
	log         zerolog.Logger
}

func NewZookeeperLocker(conn *zk.Conn, root string, waitTimeout time.Duration, log zerolog.Logger) (*ZookeeperLocker, error) {
	if root == "" {
		root = DefaultZookeeperRoot
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}

	l := &ZookeeperLocker{
		conn:        conn,
		root:        root,
		waitTimeout: waitTimeout,
		log:         log,
	}
	if err := l.ensurePath(root); err != nil {
		return nil, err
	}
	return l, nil
}

// Acquire returns the full path of the lock node as the release token.
func (l *ZookeeperLocker) Acquire(ctx context.Context, key string) (string, error) {
	lockPath := path.Join(l.root, key)
	if err := l.ensurePath(lockPath); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLockAcquireFailed, key, err)
	}

	node, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/"+lockNodePrefix, []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return "", fmt.Errorf("%w: %s: create node: %v", domain.ErrLockAcquireFailed, key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	if err := l.waitForTurn(ctx, lockPath, path.Base(node)); err != nil {
		if delErr := l.conn.Delete(node, -1); delErr != nil && !errors.Is(delErr, zk.ErrNoNode) {
			l.log.Error().Err(delErr).Str("node", node).Msg("failed to remove abandoned lock node")
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLockAcquireFailed, key, err)
	}

	return node, nil
}

func (l *ZookeeperLocker) waitForTurn(ctx context.Context, lockPath, myNode string) error {
	for {
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		sortBySequence(children)

		idx := indexOf(children, myNode)
		switch {
		case idx < 0:
			return errors.New("lock node disappeared, session may have expired")
		case idx == 0:
			return nil
		}

		exists, _, events, err := l.conn.ExistsW(lockPath + "/" + children[idx-1])
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

// Release deletes the lock node named by token. Tokens that do not name a
// node under key are ignored.
func (l *ZookeeperLocker) Release(ctx context.Context, key, token string) error {
	if token == "" || path.Dir(token) != path.Join(l.root, key) {
		l.log.Warn().Str("key", key).Msg("release of lock not owned by this token")
		return nil
	}

	err := l.conn.Delete(token, -1)
	if errors.Is(err, zk.ErrNoNode) {
		l.log.Warn().Str("key", key).Msg("lock node already gone before release")
		return nil
	}
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (l *ZookeeperLocker) ensurePath(p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		current += "/" + part
		_, err := l.conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create %s: %w", current, err)
		}
	}
	return nil
}

// sortBySequence orders lock nodes by the sequence number ZooKeeper appended.
// Protected nodes carry a random prefix, so plain string order is not enough.
func sortBySequence(nodes []string) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return sequenceOf(nodes[i]) < sequenceOf(nodes[j])
	})
}

func sequenceOf(node string) string {
	if len(node) < sequenceDigits {
		return node
	}
	return node[len(node)-sequenceDigits:]
}

func indexOf(nodes []string, name string) int {
	for i, n := range nodes {
		if n == name {
			return i
		}
	}
	return -1
}
