package domain

import "time"

type ReleaseStatus string

const (
	StatusProven   ReleaseStatus = "PROVEN"
	StatusWithheld ReleaseStatus = "WITHHELD"
)

// GateState tracks the release gate's per-request state machine.
// PROVEN and WITHHELD are terminal.
type GateState string

const (
	GateReceived  GateState = "RECEIVED"
	GateParsing   GateState = "PARSING"
	GateVerifying GateState = "VERIFYING"
	GateDeciding  GateState = "DECIDING"
	GateProven    GateState = "PROVEN"
	GateWithheld  GateState = "WITHHELD"
)

// CorroborationReport is produced by the independent second pass. It is
// never derived from claim verdicts; the two are only compared at the
// release gate.
type CorroborationReport struct {
	Admissible      bool `json:"admissible"`
	AnchoredCount   int  `json:"anchoredCount"`
	UnanchoredCount int  `json:"unanchoredCount"`
	TotalClaims     int  `json:"totalClaims"`
	TimedOut        bool `json:"-"`
}

// ReleaseDecision is the terminal outcome of one verification request.
// Invariant: Status == PROVEN iff TotalClaims > 0, UnanchoredCount == 0,
// the corroboration report is admissible, and its counts agree with the
// verdicts within the configured tolerance.
type ReleaseDecision struct {
	Status          ReleaseStatus `json:"status"`
	AnchoredCount   int           `json:"anchoredCount"`
	UnanchoredCount int           `json:"unanchoredCount"`
	TotalClaims     int           `json:"totalClaims"`
	Reasons         []ReasonCode  `json:"reasons,omitempty"`
	Duration        time.Duration `json:"-"`
}

func (d ReleaseDecision) Proven() bool {
	return d.Status == StatusProven
}
