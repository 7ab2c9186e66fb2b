package models

import "time"

// Action is the trading action taken when an experience was observed.
type Action int

const (
	ActionHold Action = 0
	ActionBuy  Action = 1
	ActionSell Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// ParseAction converts a raw string to an Action (defaults to HOLD).
func ParseAction(s string) Action {
	switch s {
	case "BUY", "buy":
		return ActionBuy
	case "SELL", "sell":
		return ActionSell
	default:
		return ActionHold
	}
}

// ExperienceMeta captures market context at observation time.
type ExperienceMeta struct {
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	Volatility float64 `json:"volatility"`
	Confidence float64 `json:"confidence"`
}

// Experience is one observed (state, action, reward, next-state) transition.
// Immutable once stored in the replay buffer.
type Experience struct {
	ID        string         `json:"id"`
	State     []float64      `json:"state"`
	Action    Action         `json:"action"`
	Reward    float64        `json:"reward"`
	NextState []float64      `json:"next_state"`
	Terminal  bool           `json:"terminal"`
	TDError   float64        `json:"td_error"`
	Priority  float64        `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
	Symbol    string         `json:"symbol"`
	Meta      ExperienceMeta `json:"meta"`
}

// BufferStatistics summarizes the replay buffer contents.
type BufferStatistics struct {
	Size         int     `json:"size"`
	Capacity     int     `json:"capacity"`
	MeanPriority float64 `json:"mean_priority"`
	MeanReward   float64 `json:"mean_reward"`
}
