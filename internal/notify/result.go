package notify

// Channel names the mechanism that interrupted the user
type Channel string

const (
	ChannelAlert  Channel = "alert"
	ChannelDialog Channel = "dialog"
)

// Outcome is the user's answer reduced to two values
type Outcome string

const (
	OutcomeOkay   Outcome = "okay"
	OutcomeCancel Outcome = "cancel"
)

// Result is the single response produced by one notification. RawIndex is
// the button or action index the user picked and is nil when the alert was
// dismissed without choosing an action.
type Result struct {
	ID       string  `json:"id"`
	Channel  Channel `json:"channel"`
	Outcome  Outcome `json:"result"`
	RawIndex *int    `json:"index,omitempty"`
}

func outcomeFor(index int) Outcome {
	if index == 0 {
		return OutcomeOkay
	}
	return OutcomeCancel
}

func chosen(id string, channel Channel, index int) Result {
	return Result{ID: id, Channel: channel, Outcome: outcomeFor(index), RawIndex: &index}
}

func dismissed(id string, channel Channel) Result {
	return Result{ID: id, Channel: channel, Outcome: OutcomeCancel}
}
