package rtm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Pinger periodically runs a keepalive function on a cron schedule.
type Pinger struct {
	scheduler *robfigcron.Cron
	mu        sync.Mutex
	running   bool
}

// NewPinger schedules ping every interval. Intervals below one second are
// rounded up to one second by the scheduler.
func NewPinger(interval time.Duration, ping func()) (*Pinger, error) {
	scheduler := robfigcron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), ping); err != nil {
		return nil, fmt.Errorf("failed to schedule keepalive: %w", err)
	}
	return &Pinger{scheduler: scheduler}, nil
}

func (p *Pinger) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.scheduler.Start()
}

// Stop halts the schedule and waits for a running ping to finish.
func (p *Pinger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()
	<-p.scheduler.Stop().Done()
	slog.Debug("rtm: keepalive stopped")
}
