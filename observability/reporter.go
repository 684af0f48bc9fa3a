package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Reporter periodically logs the telemetry counters together with the
// server's own CPU and memory usage. It runs under the supervisor.
type Reporter struct {
	log       *slog.Logger
	telemetry *Telemetry
	interval  time.Duration
	registry  interface{ Size() int }
}

func NewReporter(log *slog.Logger, telemetry *Telemetry, registry interface{ Size() int }, interval time.Duration) *Reporter {
	return &Reporter{log: log, telemetry: telemetry, registry: registry, interval: interval}
}

func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				r.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := r.telemetry.Snapshot()
			r.log.Info("Server status",
				"online", r.registry.Size(),
				"connections_opened", stats.ConnectionsOpened,
				"registrations", stats.Registrations,
				"renames", stats.Renames,
				"broadcasts", stats.Broadcasts,
				"addressed_sends", stats.AddressedSends,
				"dropped_addressed", stats.DroppedAddressed,
				"decode_misses", stats.DecodeMisses,
				"liveness_timeouts", stats.LivenessTimeouts,
				"departures", stats.Departures,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage for this process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpu, nil
}
