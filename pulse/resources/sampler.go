// Package resources samples process memory and per-core CPU load while a run
// executes.
package resources

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
)

// Sample is one measurement
type Sample struct {
	Elapsed time.Duration
	CPU     []float64 // percent per core
	RSS     uint64    // bytes
}

// Usage summarizes the samples of one run
type Usage struct {
	Samples     []Sample
	Duration    time.Duration
	PeakRSS     uint64
	MeanRSS     uint64
	MeanCPU     float64 // mean over samples of the average across cores
	PeakCPU     float64 // highest single-core reading
	Cores       int
	SystemTotal uint64 // physical memory in bytes
}

// Sampler polls gopsutil on a fixed interval in a background goroutine
type Sampler struct {
	interval time.Duration
	proc     *process.Process
	log      *zap.SugaredLogger

	mu      sync.Mutex
	samples []Sample
	start   time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSampler creates a sampler for the current process
func NewSampler(interval time.Duration, log *zap.SugaredLogger) (*Sampler, error) {
	if interval <= 0 {
		return nil, errors.Newf("sample interval must be positive, got %s", interval)
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to inspect current process")
	}
	if log == nil {
		log = logger.ComponentLogger("resources")
	}
	return &Sampler{interval: interval, proc: proc, log: log}, nil
}

// Start begins sampling until Stop is called or ctx ends
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.start = time.Now()

	// Prime the per-core counters so the first tick reports a real delta
	_, _ = cpu.Percent(0, true)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, err := s.sample()
				if err != nil {
					s.log.Debugw("resource sample failed", logger.FieldError, err)
					continue
				}
				s.mu.Lock()
				s.samples = append(s.samples, sample)
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Sampler) sample() (Sample, error) {
	perCore, err := cpu.Percent(0, true)
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to read cpu load")
	}
	info, err := s.proc.MemoryInfo()
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to read process memory")
	}
	return Sample{Elapsed: time.Since(s.start), CPU: perCore, RSS: info.RSS}, nil
}

// Stop ends sampling and returns the summary. It is safe to call Stop on a
// sampler that was never started.
func (s *Sampler) Stop() Usage {
	if s.cancel == nil {
		return Usage{}
	}
	s.cancel()
	<-s.done

	s.mu.Lock()
	samples := append([]Sample(nil), s.samples...)
	s.mu.Unlock()

	usage := Summarize(samples)
	usage.Duration = time.Since(s.start)
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemTotal = vm.Total
	}
	return usage
}

// Summarize computes peak and mean figures over samples
func Summarize(samples []Sample) Usage {
	u := Usage{Samples: samples}
	if len(samples) == 0 {
		return u
	}

	var rssSum uint64
	var cpuSum float64
	for _, s := range samples {
		rssSum += s.RSS
		u.PeakRSS = max(u.PeakRSS, s.RSS)
		u.Cores = max(u.Cores, len(s.CPU))

		if len(s.CPU) == 0 {
			continue
		}
		var total float64
		for _, c := range s.CPU {
			total += c
			u.PeakCPU = max(u.PeakCPU, c)
		}
		cpuSum += total / float64(len(s.CPU))
	}
	u.MeanRSS = rssSum / uint64(len(samples))
	u.MeanCPU = cpuSum / float64(len(samples))
	return u
}
