// Package statemachine provides an immutable transition table and a cheap
// per-run cursor over it.
//
// A Table is built once, validated at construction and shared between
// goroutines. Each run of the machine, such as one inbound webhook delivery,
// gets its own Machine from Table.Start. A Machine is not safe for
// concurrent use; it belongs to the goroutine that drives the run.
//
//	table := statemachine.MustTable(
//		statemachine.Transition[State, Event]{From: Received, On: Verify, To: Verified},
//		statemachine.Transition[State, Event]{From: Verified, On: Reject, To: Rejected},
//	)
//	m := table.Start(Received)
//	if err := m.Fire(Verify); err != nil {
//		// the table has no Verify edge from the current state
//	}
//
// States without outgoing transitions are terminal.
package statemachine
