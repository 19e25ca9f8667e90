package mapper

import (
	"fmt"
	"math"
	"strings"

	"github.com/Alia5/padbridge/xinput"
)

// Combine selects how several mappings of one analog channel are merged.
// Digital channels are always OR'ed.
type Combine int

const (
	// CombineLargest reports the mapping that deviates most from neutral.
	CombineLargest Combine = iota
	// CombineFirst reports the first mapping that has a live source.
	CombineFirst
)

func (c Combine) String() string {
	switch c {
	case CombineFirst:
		return "first"
	default:
		return "largest"
	}
}

func ParseCombine(s string) (Combine, error) {
	switch strings.ToLower(s) {
	case "", "largest":
		return CombineLargest, nil
	case "first":
		return CombineFirst, nil
	default:
		return CombineLargest, fmt.Errorf("unknown combine mode %q", s)
	}
}

// Collection holds every mapping that targets one channel, in persisted order.
type Collection struct {
	Channel  xinput.Channel
	Mappings []*Mapping
}

// Value evaluates all mappings and combines them.
func (c *Collection) Value(mode Combine) float64 {
	if len(c.Mappings) == 0 {
		return c.Channel.DisabledValue()
	}

	if c.Channel.IsDigital() {
		for _, m := range c.Mappings {
			if m.Evaluate() > 0.5 {
				return 1
			}
		}
		return 0
	}

	neutral := c.Channel.Neutral()
	switch mode {
	case CombineFirst:
		for _, m := range c.Mappings {
			if !m.Disabled() {
				return m.Evaluate()
			}
		}
		return c.Channel.DisabledValue()
	default:
		best := c.Mappings[0].Evaluate()
		for _, m := range c.Mappings[1:] {
			v := m.Evaluate()
			if math.Abs(v-neutral) > math.Abs(best-neutral) {
				best = v
			}
		}
		return best
	}
}
