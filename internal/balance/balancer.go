// Package balance implements adaptive participation throttling.
//
// The balancer counts per-person, per-day messages by channel and maps a
// person's volume relative to the team average onto a send probability:
// loud people get throttled, quiet ones boosted. The probability only
// gates fallback communications; explicitly planned sends are never
// suppressed here.
package balance

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// Probability bands. Ratios strictly above High throttle, strictly below
// Low boost, everything else (boundaries included) is baseline.
const (
	highRatio = 2.0
	lowRatio  = 0.5

	throttleProbability = 0.3
	baselineProbability = 0.6
	boostProbability    = 0.9
)

// Balancer tracks participation counters in memory and writes them
// through to the store for durability. The in-memory copy is
// authoritative within a run; the persisted rows serve reporting and
// restarts.
type Balancer struct {
	mu      sync.Mutex
	enabled bool
	store   *store.Store // nil in tests that only need the math
	counts  map[int64]map[string]*model.ParticipationStat
}

// New creates a balancer. When enabled is false, ShouldGenerateFallback
// always answers true and Record still counts (the diagnostics stay
// useful either way).
func New(st *store.Store, enabled bool) *Balancer {
	return &Balancer{
		enabled: enabled,
		store:   st,
		counts:  make(map[int64]map[string]*model.ParticipationStat),
	}
}

// Record increments the counter for (person, day, channel). Unknown
// channel values are rejected with a warning and ignored; a bad channel
// string from a malformed directive must not take the simulation down.
func (b *Balancer) Record(ctx context.Context, personID string, day int64, channel model.Channel) {
	if !channel.Valid() {
		slog.Warn("participation record ignored: unknown channel", "channel", channel, "person", personID)
		return
	}

	b.mu.Lock()
	st := b.statLocked(personID, day)
	switch channel {
	case model.ChannelEmail:
		st.EmailCount++
	case model.ChannelChat:
		st.ChatCount++
	}
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.BumpParticipation(ctx, personID, day, channel); err != nil {
			slog.Warn("participation write-through failed", "person", personID, "error", err)
		}
	}
}

func (b *Balancer) statLocked(personID string, day int64) *model.ParticipationStat {
	byPerson, ok := b.counts[day]
	if !ok {
		byPerson = make(map[string]*model.ParticipationStat)
		b.counts[day] = byPerson
	}
	st, ok := byPerson[personID]
	if !ok {
		st = &model.ParticipationStat{PersonID: personID, Day: day}
		byPerson[personID] = st
	}
	return st
}

// LoadDay replaces the in-memory counters for a day with the persisted
// rows. Used after a restart before reporting on an earlier day.
func (b *Balancer) LoadDay(ctx context.Context, day int64) error {
	if b.store == nil {
		return nil
	}
	stats, err := b.store.ParticipationForDay(ctx, day)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	byPerson := make(map[string]*model.ParticipationStat, len(stats))
	for _, st := range stats {
		s := st
		byPerson[s.PersonID] = &s
	}
	b.counts[day] = byPerson
	return nil
}

// SendProbability maps a person's volume relative to the team average
// onto a probability. The "boost" case covers a silent team (average 0)
// and degenerate team sizes.
func (b *Balancer) SendProbability(personID string, day int64, teamSize int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if teamSize <= 0 {
		return boostProbability
	}
	var total int
	for _, st := range b.counts[day] {
		total += st.Total()
	}
	average := float64(total) / float64(teamSize)
	if average == 0 {
		return boostProbability
	}

	var personCount int
	if st, ok := b.counts[day][personID]; ok {
		personCount = st.Total()
	}
	ratio := float64(personCount) / average

	switch {
	case ratio > highRatio:
		return throttleProbability
	case ratio < lowRatio:
		return boostProbability
	default:
		return baselineProbability
	}
}

// ShouldGenerateFallback draws one uniform sample from the shared RNG and
// compares it against the send probability. The draw always happens when
// balancing is enabled, keeping the RNG call sequence deterministic.
func (b *Balancer) ShouldGenerateFallback(personID string, day int64, teamSize int, rng *rand.Rand) bool {
	if !b.enabled {
		return true
	}
	p := b.SendProbability(personID, day, teamSize)
	return rng.Float64() < p
}

// dayTotals returns each counted person's total for a day, sorted
// descending for the share computation.
func (b *Balancer) dayTotals(day int64) []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var totals []int
	for _, st := range b.counts[day] {
		totals = append(totals, st.Total())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(totals)))
	return totals
}

// Gini computes the Gini coefficient of the day's per-person totals.
// Diagnostic only; never used to gate behavior. Returns 0 for fewer than
// two counted people or a silent day.
func (b *Balancer) Gini(day int64) float64 {
	totals := b.dayTotals(day)
	n := len(totals)
	if n < 2 {
		return 0
	}
	var sum, diff float64
	for i, a := range totals {
		sum += float64(a)
		for _, c := range totals[i+1:] {
			d := float64(a - c)
			if d < 0 {
				d = -d
			}
			diff += d
		}
	}
	if sum == 0 {
		return 0
	}
	return diff / (float64(n) * sum)
}

// TopTwoShare returns the fraction of the day's total volume produced by
// its two loudest senders. Diagnostic only.
func (b *Balancer) TopTwoShare(day int64) float64 {
	totals := b.dayTotals(day)
	if len(totals) == 0 {
		return 0
	}
	var sum, top int
	for i, v := range totals {
		sum += v
		if i < 2 {
			top += v
		}
	}
	if sum == 0 {
		return 0
	}
	return float64(top) / float64(sum)
}
