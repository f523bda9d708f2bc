package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"portal-chat/contract"
)

var _ contract.Worker = (*HealthMonitoringWorker)(nil)

// HealthMonitoringWorker periodically logs CPU and memory usage of the server
// process along with the number of live sessions.
type HealthMonitoringWorker struct {
	log           *slog.Logger
	countSessions func() int
	interval      time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, countSessions func() int, interval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:           log,
		countSessions: countSessions,
		interval:      interval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := p.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			w.log.Info("health",
				slog.Float64("cpu_percent", cpu),
				slog.Float64("ram_percent", float64(ram)),
				slog.Int("sessions", w.countSessions()))
		}
	}
}
