package brain

import (
	"time"

	"github.com/ghostrush/server/internal/grid"
)

// hunterTakeover is the frightened time remaining above which the
// hunter brain drives. Below it the defensive brain resumes early so
// a chase never overruns the timer.
const hunterTakeover = time.Second

// Controller chains the available brains for one room. A loaded
// tabular policy drives every tick on its own; otherwise the hunter
// covers the frightened phase and the defensive search the rest.
type Controller struct {
	policy    *TabularPolicy
	hunter    *HunterBrain
	defensive *DefensiveBrain
}

// NewController builds the brain chain for one room. policy may be nil
// when no model is loaded or the room asked for the heuristic pair.
func NewController(policy *TabularPolicy, searchDepth int) *Controller {
	return &Controller{
		policy:    policy,
		hunter:    NewHunterBrain(),
		defensive: NewDefensiveBrain(searchDepth, DefaultWeights()),
	}
}

// UsesModel reports whether a tabular policy drives this controller.
func (c *Controller) UsesModel() bool { return c.policy != nil }

// SearchDepth reports the defensive lookahead depth.
func (c *Controller) SearchDepth() int { return c.defensive.SearchDepth() }

// Decide returns the direction for the current tick.
func (c *Controller) Decide(st *State) (grid.Direction, error) {
	if c.policy != nil {
		return c.policy.Decide(st)
	}
	if st.FrightenedRemaining > hunterTakeover {
		return c.hunter.Decide(st)
	}
	return c.defensive.Decide(st)
}
