package cloud

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
)

// Waiter races a remote-change notification against a deadline.
type Waiter struct {
	notifier domain.ChangeNotifier
	logger   *slog.Logger
}

func NewWaiter(notifier domain.ChangeNotifier, logger *slog.Logger) *Waiter {
	return &Waiter{notifier: notifier, logger: log.OrDefault(logger)}
}

// IsCloudAvailable reports whether a replication channel exists at all
func (w *Waiter) IsCloudAvailable() bool {
	return w.notifier.Available()
}

type subscription struct {
	ch          <-chan struct{}
	unsubscribe func()
	err         error
}

// WaitForRemoteChange returns true if a change signal arrives within timeout.
// It returns false on timeout, cancellation or a failed subscription.
// Setting up the subscription counts against timeout, and the subscription
// is released before returning in every case.
func (w *Waiter) WaitForRemoteChange(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	subc := make(chan subscription, 1)
	go func() {
		ch, unsubscribe, err := w.notifier.Subscribe(wctx)
		subc <- subscription{ch: ch, unsubscribe: unsubscribe, err: err}
	}()

	var sub subscription
	select {
	case sub = <-subc:
	case <-wctx.Done():
		// A stalled transport may still hand back a subscription later
		go func() {
			if late := <-subc; late.err == nil {
				late.unsubscribe()
			}
		}()
		return false
	}
	if sub.err != nil {
		w.logger.Warn("remote change subscription failed", "error", sub.err)
		return false
	}
	defer sub.unsubscribe()

	select {
	case _, ok := <-sub.ch:
		return ok
	case <-wctx.Done():
		return false
	}
}
