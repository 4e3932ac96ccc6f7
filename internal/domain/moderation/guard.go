package moderation

import "fmt"

// suppress rewrites a punitive result into the allow-through result of
// passive mode. The Layer 4 output keeps the original decision.
func suppress(res *DecisionResult) {
	original := res.LayerOutputs.Layer4
	res.ShadowAction = original.Action
	res.Action = ActionAllow
	res.Blocked = false
	res.Reason = fmt.Sprintf("legacy enforcement disabled, would have applied %s: %s", original.Action, original.Reason)
}

// recordSkipped is the passive-mode path for TEMP_MUTE and HARD_BLOCK: the
// decision is logged as skipped and the account is left untouched
func (s *Service) recordSkipped(u *AccountUpdate, base Event, res *DecisionResult) Event {
	suppress(res)
	base.Action = EventPipelineDecided
	base.Reason = res.Reason
	base.Skipped = true
	base.Automated = true
	return u.Append(base)
}
