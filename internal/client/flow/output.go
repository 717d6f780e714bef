package flow

// Output receives the machine's events. Exactly one event fires per
// operation invocation; the permission side effect of SubmitPin/Register may
// later produce an additional step event on its own.
//
// Implementations that have torn down should ignore late events; the machine
// stops emitting only after Close.
type Output interface {
	PresentStep(step Step)
	PresentError(kind ErrorKind)
}
