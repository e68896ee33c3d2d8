package worker

import (
	"context"
	"log"
	"time"
)

// 失効スイープの実体。通常はCancelUsecase。
type PendingExpirer interface {
	ExpirePendingOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// 期限切れPENDING注文を定期的にFAILEDへ落とすスイーパー。
type ExpireWorker struct {
	expirer  PendingExpirer
	ttl      time.Duration
	interval time.Duration
}

func NewExpireWorker(expirer PendingExpirer, ttl, interval time.Duration) *ExpireWorker {
	return &ExpireWorker{expirer: expirer, ttl: ttl, interval: interval}
}

// Run はctxが閉じるまでスイープを繰り返す。
func (w *ExpireWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpireWorker) sweep(ctx context.Context) {
	n, err := w.expirer.ExpirePendingOlderThan(ctx, w.ttl)
	if err != nil {
		log.Printf("expire sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("expired %d pending orders", n)
	}
}
