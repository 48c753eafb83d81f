package agent

import (
	"github.com/rcliao/remem/internal/bank"
)

// Outcome describes what a transition did, for policy feedback.
type Outcome struct {
	Forced bool
	Edits  *bank.BatchResult
}

// Policy suggests the next action. It is advisory: the Machine's bounds
// override it.
type Policy interface {
	Suggest(s State) Action
	Observe(s State, a Action, o Outcome)
}

// DefaultRewards is the per-action reward used by NewStatsPolicy.
var DefaultRewards = map[Action]float64{
	ActionThink:  0.1,
	ActionRefine: 0.2,
	ActionAct:    1.0,
}

// ActionStat is the running record for one state/action pair.
type ActionStat struct {
	State      State   `json:"state"`
	Action     Action  `json:"action"`
	Count      int     `json:"count"`
	MeanReward float64 `json:"mean_reward"`
}

// StatsPolicy suggests the action with the best mean reward seen from a state.
type StatsPolicy struct {
	Rewards map[Action]float64
	stats   map[State]map[Action]*ActionStat
}

// NewStatsPolicy returns a policy using DefaultRewards.
func NewStatsPolicy() *StatsPolicy {
	rewards := make(map[Action]float64, len(DefaultRewards))
	for a, r := range DefaultRewards {
		rewards[a] = r
	}
	return &StatsPolicy{Rewards: rewards, stats: map[State]map[Action]*ActionStat{}}
}

// Suggest returns the best observed action from s, or "" with no data.
// Ties go to the earlier action in Actions.
func (p *StatsPolicy) Suggest(s State) Action {
	var best Action
	bestReward := 0.0
	for _, a := range Actions {
		st, ok := p.stats[s][a]
		if !ok {
			continue
		}
		if best == "" || st.MeanReward > bestReward {
			best, bestReward = a, st.MeanReward
		}
	}
	return best
}

// Observe records one transition. Forced transitions earn nothing, and edit
// rewards scale with the share of edits that succeeded.
func (p *StatsPolicy) Observe(s State, a Action, o Outcome) {
	reward := p.Rewards[a]
	if o.Forced {
		reward = 0
	}
	if o.Edits != nil && o.Edits.Total > 0 {
		reward *= float64(o.Edits.Successful) / float64(o.Edits.Total)
	}

	byAction, ok := p.stats[s]
	if !ok {
		byAction = map[Action]*ActionStat{}
		p.stats[s] = byAction
	}
	st, ok := byAction[a]
	if !ok {
		st = &ActionStat{State: s, Action: a}
		byAction[a] = st
	}
	st.Count++
	st.MeanReward += (reward - st.MeanReward) / float64(st.Count)
}

// Stats returns every recorded pair, ordered by state then action.
func (p *StatsPolicy) Stats() []ActionStat {
	var out []ActionStat
	for _, s := range []State{StateThink, StateRefine, StateAct} {
		for _, a := range Actions {
			if st, ok := p.stats[s][a]; ok {
				out = append(out, *st)
			}
		}
	}
	return out
}
