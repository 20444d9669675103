package session

import (
	"context"
	"time"

	"github.com/sundaybox/weekplanner/internal/logger"
)

// Session is a short-lived token granting continued cross-device access to a
// plan. Lifetime is hard: Touch refreshes last_active but never extends
// expiry.
type Session struct {
	Token      string    `json:"token"`
	Owner      string    `json:"owner"`
	PlanID     uint      `json:"plan_id,omitempty"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastActive time.Time `json:"last_active"`
}

// Registry issues and validates session tokens. Expired and nonexistent
// tokens are indistinguishable to callers.
type Registry interface {
	Create(ctx context.Context, owner, deviceInfo string) (*Session, error)
	Validate(ctx context.Context, token string) (*Session, error)
	Touch(ctx context.Context, token string) error
	AttachPlan(ctx context.Context, token string, planID uint) error
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// StartSweeper purges expired sessions on a fixed interval until ctx is
// cancelled. Sweeping is scheduled, never per-request.
func StartSweeper(ctx context.Context, registry Registry, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := registry.Sweep(ctx)
				if err != nil {
					logger.Error("Session sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("Swept expired sessions", "removed", removed)
				}
			}
		}
	}()
}
