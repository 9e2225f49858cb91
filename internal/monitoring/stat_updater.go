package monitoring

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// StatUpdater periodically logs process-level resource usage so a small
// deployment has some visibility without external tooling.
type StatUpdater struct {
	ticker   *time.Ticker
	done     chan bool
	interval time.Duration
	proc     *process.Process
}

// NewStatUpdater creates a new StatUpdater sampling at the given interval.
func NewStatUpdater(interval time.Duration) *StatUpdater {
	if interval <= 0 {
		interval = time.Minute
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: cannot inspect own process, CPU/RSS stats disabled")
	}
	return &StatUpdater{
		done:     make(chan bool),
		interval: interval,
		proc:     proc,
	}
}

// Run starts the periodic sampling loop.
func (su *StatUpdater) Run() {
	log.Info().Msg("Starting background stat updater...")
	su.ticker = time.NewTicker(su.interval)
	defer su.ticker.Stop()

	// Sample once immediately on start
	su.sample()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-su.ticker.C:
			su.sample()
		}
	}
}

// Stop halts the periodic sampling.
func (su *StatUpdater) Stop() {
	su.done <- true
}

func (su *StatUpdater) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	evt := log.Info().
		Int("goroutines", runtime.NumGoroutine()).
		Uint64("heap_alloc_bytes", mem.HeapAlloc)

	if su.proc != nil {
		if cpu, err := su.proc.CPUPercent(); err == nil {
			evt = evt.Float64("cpu_percent", cpu)
		}
		if mi, err := su.proc.MemoryInfo(); err == nil {
			evt = evt.Uint64("rss_bytes", mi.RSS)
		}
	}

	evt.Msg("Process stats")
}
