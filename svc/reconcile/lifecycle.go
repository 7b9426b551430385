package reconcile

import "github.com/dmitrymomot/billingd/pkg/statemachine"

// Stage is a step in the life of one delivery.
type Stage string

const (
	StageReceived          Stage = "received"
	StageSignatureVerified Stage = "signature_verified"
	StageParsed            Stage = "parsed"
	StageDeduplicated      Stage = "deduplicated"
	StageRouted            Stage = "routed"
	StageApplied           Stage = "applied"
	StageRejected          Stage = "rejected"
)

type step string

const (
	stepVerify      step = "verify"
	stepParse       step = "parse"
	stepDeduplicate step = "deduplicate"
	stepRoute       step = "route"
	stepApply       step = "apply"
	stepAcknowledge step = "acknowledge"
	stepReject      step = "reject"
)

type edge = statemachine.Transition[Stage, step]

// lifecycle lists every legal move. Acknowledge short-cuts a parsed delivery
// that needs no work: an event without a type or one already applied.
var lifecycle = statemachine.MustTable(
	edge{From: StageReceived, On: stepVerify, To: StageSignatureVerified},
	edge{From: StageSignatureVerified, On: stepParse, To: StageParsed},
	edge{From: StageParsed, On: stepDeduplicate, To: StageDeduplicated},
	edge{From: StageParsed, On: stepAcknowledge, To: StageApplied},
	edge{From: StageDeduplicated, On: stepRoute, To: StageRouted},
	edge{From: StageRouted, On: stepApply, To: StageApplied},

	edge{From: StageReceived, On: stepReject, To: StageRejected},
	edge{From: StageSignatureVerified, On: stepReject, To: StageRejected},
	edge{From: StageParsed, On: stepReject, To: StageRejected},
	edge{From: StageDeduplicated, On: stepReject, To: StageRejected},
	edge{From: StageRouted, On: stepReject, To: StageRejected},
)

// delivery tracks one request through the lifecycle.
type delivery struct {
	m *statemachine.Machine[Stage, step]
}

func newDelivery() *delivery {
	return &delivery{m: lifecycle.Start(StageReceived)}
}

// advance panics on an illegal move: the handler drives the machine, so a
// missing edge is a bug in the handler, not in the request.
func (d *delivery) advance(s step) {
	if err := d.m.Fire(s); err != nil {
		panic("reconcile: " + err.Error())
	}
}

func (d *delivery) stage() Stage {
	return d.m.Current()
}
