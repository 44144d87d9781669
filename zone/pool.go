package zone

import (
	"sync"

	"github.com/hostftl/zns-ftl/device"
	"github.com/pkg/errors"
)

var (
	// ErrNoFreeZones is returned by PopFreeForGC when the free list is
	// exhausted.
	ErrNoFreeZones = errors.New("zone pool: no free zones available")
	// ErrNoCurrentLogZone is returned when an operation requires an
	// active current-log zone and there isn't one.
	ErrNoCurrentLogZone = errors.New("zone pool: no current log zone")
)

// Pool owns every Zone record and the free/current-log/used-log
// bookkeeping lists. All list mutations take mu; Zone counter mutations
// take the per-zone lock inside Zone itself. Per spec.md's ordering
// rule, a caller already holding a logical-block lock may acquire mu,
// never the other way around.
type Pool struct {
	dev device.Command
	geo device.Geometry

	// reserve is the number of free zones kept back for GC's own use;
	// AcquireFreshLogZone (writer path) refuses to hand out the last
	// `reserve` free zones.
	reserve uint32

	mu      sync.Mutex
	cond    *sync.Cond // signaled whenever a zone returns to free
	zones   []*Zone    // owning table, indexed by ID
	free    []ID       // FIFO queue
	usedLog []ID       // FIFO queue
	current ID
	hasCur  bool
}

// NewPool builds the zone table for a device with the given geometry and
// seeds the free list with every zone (the caller decides later how many
// of those end up serving as data zones vs. log zones by how it drives
// Acquire/Release). reserve is the number of free zones withheld from
// the writer path for GC's exclusive use (spec.md default: 1).
func NewPool(dev device.Command, geo device.Geometry, reserve uint32) *Pool {
	p := &Pool{
		dev:     dev,
		geo:     geo,
		reserve: reserve,
		zones:   make([]*Zone, geo.NumZones),
		free:    make([]ID, 0, geo.NumZones),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := uint32(0); i < geo.NumZones; i++ {
		z := newZone(ID(i), uint64(i)*uint64(geo.PagesPerZone), geo.PagesPerZone)
		p.zones[i] = z
		p.free = append(p.free, z.ID)
	}
	return p
}

// Zone returns the owning record for id.
func (p *Pool) Zone(id ID) *Zone {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zones[id]
}

// Stats reports the pool-wide counters: free zones, used-log zones, and
// whether a current-log zone exists. The GC watermark check reads
// numUsedLog.
func (p *Pool) Stats() (numFree, numUsedLog int, hasCurrent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free), len(p.usedLog), p.hasCur
}

// CurrentLogZone returns the active current-log zone, if any.
func (p *Pool) CurrentLogZone() (*Zone, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasCur {
		return nil, false
	}
	return p.zones[p.current], true
}

// AcquireFreshLogZone moves a zone from free to current-log, clears its
// counters, and returns it. It blocks (via cond, not a spin loop — see
// spec.md §9's back-pressure redesign note) while free zones are down to
// the GC reserve, waking whenever ReleaseEmptyZone hands one back.
func (p *Pool) AcquireFreshLogZone() *Zone {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uint32(len(p.free)) <= p.reserve {
		p.cond.Wait()
	}
	z := p.popFreeLocked()
	p.current = z.ID
	p.hasCur = true
	return z
}

// PopFreeForGC takes the next free zone like AcquireFreshLogZone, except
// it is allowed to consume the reserved zone GC holds back from writers
// and it leaves the current-log zone untouched: the zone it returns is a
// merge target, not a log zone. It does not block and fails with
// ErrNoFreeZones if the free list is truly empty.
func (p *Pool) PopFreeForGC() (*Zone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, ErrNoFreeZones
	}
	return p.popFreeLocked(), nil
}

func (p *Pool) popFreeLocked() *Zone {
	id := p.free[0]
	p.free = p.free[1:]
	z := p.zones[id]
	z.resetCounters()
	return z
}

// RetireCurrentLogZone appends the current-log zone to the used-log
// tail and clears current. Called when the active zone's write pointer
// reaches PagesPerZone.
func (p *Pool) RetireCurrentLogZone() (ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasCur {
		return 0, ErrNoCurrentLogZone
	}
	id := p.current
	p.usedLog = append(p.usedLog, id)
	p.hasCur = false
	return id, nil
}

// ReleaseEmptyZone resets z on the device, zeroes its in-memory
// counters, and returns it to the free tail. Used both by GC when a
// merge's prior data zone is freed and when a used-log zone's valid page
// count has dropped to zero.
func (p *Pool) ReleaseEmptyZone(z *Zone) error {
	if err := p.dev.ZoneReset(z.SPPA); err != nil {
		return errors.Wrap(err, "zone pool: reset")
	}
	z.resetCounters()

	p.mu.Lock()
	p.free = append(p.free, z.ID)
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

// ReclaimEmptyUsedLogZones scans the used-log list for zones whose valid
// page count has dropped to zero, unlinks, resets and frees each one.
// Returns the count reclaimed.
func (p *Pool) ReclaimEmptyUsedLogZones() (int, error) {
	p.mu.Lock()
	var toFree []ID
	remaining := p.usedLog[:0]
	for _, id := range p.usedLog {
		if p.zones[id].ValidPages() == 0 {
			toFree = append(toFree, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	p.usedLog = remaining
	p.mu.Unlock()

	for _, id := range toFree {
		if err := p.ReleaseEmptyZone(p.zones[id]); err != nil {
			return 0, err
		}
	}
	return len(toFree), nil
}

// MarkDataZoneFreed removes a zone from data-zone duty and returns it to
// free. Used by GC once a merge has replaced a logical block's prior
// data zone with a freshly merged one.
func (p *Pool) MarkDataZoneFreed(z *Zone) error {
	return p.ReleaseEmptyZone(z)
}
