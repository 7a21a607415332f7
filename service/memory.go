package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/mem"
)

// MemoryCheck reports YELLOW when used memory exceeds yellowPercent and RED when it exceeds redPercent.
func MemoryCheck(yellowPercent, redPercent float64, interval time.Duration) HealthCheck {
	return HealthCheck{
		Name:     "memory",
		Impact:   High,
		Interval: interval,
		Run: func(ctx context.Context) error {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			switch {
			case vm.UsedPercent >= redPercent:
				return errors.Errorf("memory usage %.1f%% exceeds %.1f%%", vm.UsedPercent, redPercent)
			case vm.UsedPercent >= yellowPercent:
				return errors.Wrapf(ErrDegraded, "memory usage %.1f%% exceeds %.1f%%", vm.UsedPercent, yellowPercent)
			}
			return nil
		},
	}
}
