package moderation

import (
	"fmt"
	"math"
	"time"
)

// Action is the closed set of pipeline outcomes
type Action string

const (
	ActionAllow            Action = "ALLOW"
	ActionAllowWithNote    Action = "ALLOW_WITH_INTERNAL_NOTE"
	ActionVisibilityDampen Action = "VISIBILITY_DAMPEN"
	ActionQueueForReview   Action = "QUEUE_FOR_REVIEW"
	ActionTempMute         Action = "TEMP_MUTE"
	ActionHardBlock        Action = "HARD_BLOCK"
)

// Punitive reports whether the action mutates durable account state
func (a Action) Punitive() bool {
	return a == ActionTempMute || a == ActionHardBlock
}

// QueuePriorityHigh is the only priority Layer 4 assigns
const QueuePriorityHigh = "high"

// DecisionOutput is the Layer 4 result
type DecisionOutput struct {
	Action                   Action         `json:"action"`
	Confidence               int            `json:"confidence"`
	CombinedScore            int            `json:"combined_score"`
	IntentCategory           IntentCategory `json:"intent_category"`
	BehaviorScore            int            `json:"behavior_score"`
	Reason                   string         `json:"reason"`
	MuteDurationMinutes      int            `json:"mute_duration_minutes,omitempty"`
	DampeningDurationMinutes int            `json:"dampening_duration_minutes,omitempty"`
	QueuePriority            string         `json:"queue_priority,omitempty"`
}

// MuteDuration is the mute length for TEMP_MUTE decisions
func (d DecisionOutput) MuteDuration() time.Duration {
	return time.Duration(d.MuteDurationMinutes) * time.Minute
}

// Decide maps intent and behavior onto an action. Only the intent category
// and the two scores participate; Layer 1 output is never consulted.
func Decide(intent IntentOutput, behavior BehaviorOutput, cfg Config) DecisionOutput {
	combined := clamp(int(math.Round(
		cfg.Weights.Intent*float64(intent.Score)+cfg.Weights.Behavior*float64(behavior.Score),
	)), 0, 100)

	d := DecisionOutput{
		Action:         ActionAllow,
		Confidence:     intent.Confidence,
		CombinedScore:  combined,
		IntentCategory: intent.Category,
		BehaviorScore:  behavior.Score,
	}
	th, dur := cfg.Thresholds, cfg.Durations

	switch intent.Category {
	case IntentDangerous:
		switch {
		case combined >= th.DangerousBlock:
			d.Action, d.Confidence = ActionHardBlock, 95
		case combined >= th.DangerousMute:
			d.Action, d.Confidence = ActionTempMute, 90
			d.MuteDurationMinutes = minutes(dur.DangerousMute)
		default:
			d.Action, d.Confidence = ActionQueueForReview, 85
			d.QueuePriority = QueuePriorityHigh
		}
		d.Reason = fmt.Sprintf("dangerous intent, combined score %d", combined)

	case IntentHostile:
		switch {
		case combined >= th.HostileMute:
			d.Action, d.Confidence = ActionTempMute, 85
			d.MuteDurationMinutes = minutes(dur.HostileMute)
		case combined >= th.HostileDampen:
			d.Action, d.Confidence = ActionVisibilityDampen, 80
			d.DampeningDurationMinutes = minutes(dur.HostileDampen)
		default:
			d.Action, d.Confidence = ActionAllowWithNote, 75
		}
		d.Reason = fmt.Sprintf("hostile intent, combined score %d", combined)

	case IntentDisruptive:
		switch {
		case behavior.Score >= th.DisruptiveDampen:
			d.Action = ActionVisibilityDampen
			d.DampeningDurationMinutes = minutes(dur.DisruptiveDampen)
		case behavior.Score >= th.DisruptiveNote:
			d.Action = ActionAllowWithNote
		}
		d.Reason = fmt.Sprintf("disruptive intent, behavior score %d", behavior.Score)

	case IntentExpressive:
		if behavior.Score >= th.ExpressiveNote {
			d.Action = ActionAllowWithNote
		}
		d.Reason = fmt.Sprintf("expressive content, behavior score %d", behavior.Score)

	default:
		if behavior.Score >= th.NeutralDampen {
			d.Action = ActionVisibilityDampen
			d.DampeningDurationMinutes = minutes(dur.NeutralDampen)
		}
		d.Reason = fmt.Sprintf("neutral content, behavior score %d", behavior.Score)
	}
	return d
}

func minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
