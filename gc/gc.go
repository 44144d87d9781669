// Package gc implements the single background garbage-collection worker
// described in spec.md §4.4: it merges a logical block's log pages back
// into a fresh data zone and reclaims used-log zones whose pages have
// all gone stale.
package gc

import (
	"sync"
	"time"

	"github.com/hostftl/zns-ftl/logger"
	"github.com/hostftl/zns-ftl/mapper"
	"github.com/hostftl/zns-ftl/zone"
	"github.com/juju/errors"
)

// pollInterval is how often the collector re-checks the trigger
// watermark while idle. Cooperative cancellation (spec.md §5) is
// checked on every wake.
const pollInterval = 5 * time.Millisecond

// Collector runs the background merge/reclaim loop.
type Collector struct {
	pool    *zone.Pool
	mapper  *mapper.Mapper
	trigger int // gc_trigger from spec.md §4.4 step 1
	numLog  int // total log zones configured at init

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	lastVictim int
}

// New builds a Collector. numLogZones is the fixed count of zones
// dedicated to logging (spec.md §6 FTL API's `log_zones` init param);
// trigger is the gc_trigger watermark.
func New(pool *zone.Pool, m *mapper.Mapper, numLogZones, trigger int) *Collector {
	return &Collector{
		pool:       pool,
		mapper:     m,
		trigger:    trigger,
		numLog:     numLogZones,
		lastVictim: -1,
	}
}

// Start launches the background goroutine. Calling Start twice is a
// programmer error and panics.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		panic("gc: already running")
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop()
}

// Stop flips run_gc false and waits for the worker to return. Writers
// draining through RetireCurrentLogZone during shutdown are allowed to
// complete (spec.md §5); Stop only waits on the GC goroutine itself.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()
	<-done
}

func (c *Collector) cancelled() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Collector) loop() {
	defer close(c.done)
	for {
		if c.cancelled() {
			return
		}

		_, numUsedLog, _ := c.pool.Stats()
		if c.numLog-numUsedLog > c.trigger {
			select {
			case <-c.stop:
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		if c.cancelled() {
			return
		}
		if err := c.runCycle(); err != nil {
			logger.Errorf("gc: cycle failed: %v", err)
		}
	}
}

// runCycle performs one merge-plus-reclaim pass: spec.md §4.4 steps 2-5.
func (c *Collector) runCycle() error {
	victim, ok := c.mapper.VictimBlock(c.lastVictim)
	if !ok {
		// Nothing to merge this tick; still attempt to reclaim emptied
		// used-log zones before yielding.
		_, err := c.pool.ReclaimEmptyUsedLogZones()
		return err
	}
	c.lastVictim = victim

	newZone, err := c.pool.PopFreeForGC()
	if err != nil {
		return errors.Annotate(err, "gc: pop free zone")
	}
	if c.cancelled() {
		return nil
	}

	start := time.Now()
	prior, hadPrior, err := c.mapper.Merge(victim, newZone)
	if err != nil {
		return errors.Annotatef(err, "gc: merge block %d", victim)
	}
	if hadPrior {
		if err := c.pool.MarkDataZoneFreed(prior); err != nil {
			return errors.Annotate(err, "gc: free prior data zone")
		}
	}
	logger.WithFields(logger.Fields{
		"block":     victim,
		"zone":      newZone.ID,
		"had_prior": hadPrior,
		"cycle_ms":  time.Since(start).Milliseconds(),
	}).Debug("gc: merged log into data zone")

	if c.cancelled() {
		return nil
	}
	reclaimed, err := c.pool.ReclaimEmptyUsedLogZones()
	if err != nil {
		return errors.Annotate(err, "gc: reclaim used-log zones")
	}
	if reclaimed > 0 {
		logger.WithFields(logger.Fields{
			"reclaimed": reclaimed,
			"block":     victim,
		}).Debug("gc: reclaimed used-log zones")
	}
	return nil
}
