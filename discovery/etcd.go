// Package discovery keeps an out-of-band directory of the fleet in etcd.
// Agents register under a lease so a crashed agent disappears on its own;
// the operator reads the directory to publish authoritative roster
// snapshots and nodes watch it for their /info page.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const DefaultPrefix = "/convoy/agents/"

// Registration is one directory entry: the agent id and its HTTP address.
type Registration struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

func NewClient(endpoints []string, logger *zap.Logger) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Logger:      logger,
	})
}

func AgentKey(prefix, id string) string {
	return prefix + id
}

// AgentID extracts the id from a directory key.
func AgentID(prefix, key string) (string, bool) {
	id, ok := strings.CutPrefix(key, prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// RegisterAgent puts prefix+id under a fresh lease and keeps the lease alive
// until cancel is called or ctx ends.
func RegisterAgent(ctx context.Context, cli *clientv3.Client, prefix, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("discovery: grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, AgentKey(prefix, id), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("discovery: register %s: %w", id, err)
	}

	kaCtx, cancel := context.WithCancel(ctx)
	ch, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("discovery: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// LoadRoster returns every registered agent sorted by id.
func LoadRoster(ctx context.Context, kv clientv3.KV, prefix string) ([]Registration, error) {
	regs, _, err := load(ctx, kv, prefix)
	return regs, err
}

func load(ctx context.Context, kv clientv3.KV, prefix string) ([]Registration, int64, error) {
	resp, err := kv.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, 0, fmt.Errorf("discovery: load roster: %w", err)
	}
	dir := make(map[string]string, len(resp.Kvs))
	for _, item := range resp.Kvs {
		if id, ok := AgentID(prefix, string(item.Key)); ok {
			dir[id] = string(item.Value)
		}
	}
	return sorted(dir), resp.Header.Revision, nil
}

// WatchRoster calls fn with the full directory once, then again after every
// change, until ctx ends. It blocks.
func WatchRoster(ctx context.Context, w clientv3.Watcher, kv clientv3.KV, prefix string, fn func([]Registration)) error {
	regs, rev, err := load(ctx, kv, prefix)
	if err != nil {
		return err
	}
	dir := make(map[string]string, len(regs))
	for _, r := range regs {
		dir[r.ID] = r.Addr
	}
	fn(regs)

	wch := w.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1))
	for resp := range wch {
		if err := resp.Err(); err != nil {
			return fmt.Errorf("discovery: watch: %w", err)
		}
		if apply(dir, prefix, resp.Events) {
			fn(sorted(dir))
		}
	}
	return ctx.Err()
}

// apply folds watch events into dir and reports whether anything changed.
func apply(dir map[string]string, prefix string, events []*clientv3.Event) bool {
	changed := false
	for _, ev := range events {
		if ev.Kv == nil {
			continue
		}
		id, ok := AgentID(prefix, string(ev.Kv.Key))
		if !ok {
			continue
		}
		switch ev.Type {
		case mvccpb.PUT:
			if cur, ok := dir[id]; !ok || cur != string(ev.Kv.Value) {
				dir[id] = string(ev.Kv.Value)
				changed = true
			}
		case mvccpb.DELETE:
			if _, ok := dir[id]; ok {
				delete(dir, id)
				changed = true
			}
		}
	}
	return changed
}

func sorted(dir map[string]string) []Registration {
	out := make([]Registration, 0, len(dir))
	for id, addr := range dir {
		out = append(out, Registration{ID: id, Addr: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs projects registrations onto their ids.
func IDs(regs []Registration) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.ID
	}
	return out
}
