package wizard

// NextStep computes the forward target for the current step given the whole
// draft, so future conditional skips compose without touching the walk
// itself. Declining X setup at the decision step skips the credentials step.
func NextStep(current int, d *Draft) int {
	if current >= StepCount()-1 {
		return current
	}
	if current == StepXDecision && !d.SetupX {
		return StepReview
	}
	return current + 1
}

// PrevStep always moves back exactly one step. Skip rules are deliberately
// not re-applied on the way back so skipped steps can be revisited.
func PrevStep(current int) int {
	if current <= 0 {
		return 0
	}
	return current - 1
}
