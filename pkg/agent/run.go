package agent

import (
	"context"
	"time"
)

// Run ticks the engine every interval until ctx is done. publish, if set,
// receives a snapshot after every tick.
func (n *NetworkManager) Run(ctx context.Context, interval time.Duration, publish func(Snapshot)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Tick()
			if publish != nil {
				publish(n.Snapshot())
			}
		}
	}
}
