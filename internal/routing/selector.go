package routing

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"click-router/internal/requestctx"
)

// Selector picks one destination from a weighted set using normalized
// cumulative-weight sampling. Selection is intentionally pure-random rather
// than session-sticky; the same visitor may land on different destinations
// across clicks.
type Selector struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewSelector creates a selector seeded from the clock.
func NewSelector() *Selector {
	return NewSelectorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource creates a selector with an injectable randomness
// source so tests can pin the draw.
func NewSelectorWithSource(src rand.Source) *Selector {
	return &Selector{rng: rand.New(src)}
}

// Select returns one destination with probability proportional to its
// normalized weight. A destination with weight 0 is never selected unless it
// is the only one; when every weight is zero the draw is uniform. An empty
// list is a caller error.
func (s *Selector) Select(destinations []Destination) (*Destination, error) {
	if len(destinations) == 0 {
		return nil, ErrNoDestinations
	}
	if len(destinations) == 1 {
		return &destinations[0], nil
	}

	total := 0.0
	for _, d := range destinations {
		if d.Weight > 0 {
			total += d.Weight
		}
	}

	s.mu.Lock()
	draw := s.rng.Float64()
	s.mu.Unlock()

	if total <= 0 {
		// All weights zero: uniform selection.
		idx := int(draw * float64(len(destinations)))
		if idx >= len(destinations) {
			idx = len(destinations) - 1
		}
		return &destinations[idx], nil
	}

	// Walk the normalized cumulative distribution and return the first
	// destination whose cumulative weight exceeds the draw.
	cumulative := 0.0
	for i := range destinations {
		if destinations[i].Weight <= 0 {
			continue
		}
		cumulative += destinations[i].Weight / total
		if draw < cumulative {
			return &destinations[i], nil
		}
	}

	// Floating point slack on the last bucket.
	for i := len(destinations) - 1; i >= 0; i-- {
		if destinations[i].Weight > 0 {
			return &destinations[i], nil
		}
	}
	return &destinations[len(destinations)-1], nil
}

// FilterByTags returns the destinations whose tags are all compatible with
// the request's attributes (exact match, case-insensitive). A destination
// without tags is compatible with every request. Unknown tag keys never match.
func FilterByTags(destinations []Destination, ctx *requestctx.ClickContext) []Destination {
	if ctx == nil {
		return destinations
	}

	filtered := make([]Destination, 0, len(destinations))
	for _, d := range destinations {
		if tagsMatch(d.Tags, ctx) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func tagsMatch(tags map[string]string, ctx *requestctx.ClickContext) bool {
	for key, want := range tags {
		var got string
		switch key {
		case "country":
			got = ctx.Country
		case "region":
			got = ctx.Region
		case "city":
			got = ctx.City
		case "device":
			got = string(ctx.Device())
		case "os":
			got = ctx.OS()
		default:
			return false
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}
