package monitoring

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/debugferro/identity-be/internal/models"
	"github.com/debugferro/identity-be/internal/services"
	ws "github.com/debugferro/identity-be/internal/websocket"
)

// highCPUThreshold is the CPU usage percentage above which an alert event is
// recorded.
const highCPUThreshold = 90.0

// highCPUCooldown is the minimum gap between two high-CPU alert events.
const highCPUCooldown = 10 * time.Minute

// StatUpdater periodically samples host resource usage, keeps the latest
// snapshot and broadcasts it to subscribed websocket clients.
type StatUpdater struct {
	hub      *ws.Hub
	eventSvc services.EventServiceProvider
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool

	mu           sync.RWMutex
	latest       models.SystemStats
	lastCPUAlert time.Time
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(hub *ws.Hub, eventSvc services.EventServiceProvider, interval time.Duration) *StatUpdater {
	return &StatUpdater{
		hub:      hub,
		eventSvc: eventSvc,
		interval: interval,
		done:     make(chan bool),
	}
}

// Run starts the periodic sampling loop.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	su.ticker = time.NewTicker(su.interval)
	defer su.ticker.Stop()

	// Run once immediately on start
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

// Latest returns the most recent snapshot.
func (su *StatUpdater) Latest() models.SystemStats {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest
}

func (su *StatUpdater) sample() {
	stats := models.SystemStats{SampledAt: time.Now().UTC()}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to sample CPU usage")
	} else if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to sample memory usage")
	} else {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
		stats.MemoryTotalMB = vm.Total / 1024 / 1024
	}

	su.mu.Lock()
	su.latest = stats
	alert := stats.CPUPercent >= highCPUThreshold && time.Since(su.lastCPUAlert) >= highCPUCooldown
	if alert {
		su.lastCPUAlert = time.Now()
	}
	su.mu.Unlock()

	if alert {
		msg := fmt.Sprintf("Host CPU usage at %.1f%%", stats.CPUPercent)
		if err := su.eventSvc.CreateEvent("system.alert.cpu", "warn", msg, nil); err != nil {
			log.Error().Err(err).Msg("StatUpdater: Failed to record high CPU event")
		}
	}

	payload, err := json.Marshal(ws.Message{Action: "stats.sample", Payload: stats})
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to encode stats snapshot")
		return
	}
	su.hub.BroadcastTo(ws.TopicStats, payload)
}
