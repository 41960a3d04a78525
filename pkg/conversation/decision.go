package conversation

// Action names accepted by State.Decide.
const (
	ActionReject  = "reject"
	ActionRealign = "realign"
	ActionAccept  = "accept"
)

// Status reported back for a decision.
type Status string

const (
	StatusReset     Status = "reset"
	StatusRealigned Status = "realigned"
	StatusAccepted  Status = "accepted"
	StatusUnknown   Status = "unknown"
)

// Decision is the outcome of State.Decide.
type Decision struct {
	Status Status `json:"status"`

	// Iteration is the iteration count once the decision has been applied.
	Iteration int `json:"iteration"`

	// Changed reports whether the anchor or history was modified.
	Changed bool `json:"-"`
}
