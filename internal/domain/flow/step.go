// Package flow provides the domain models for one orchestrated analysis run:
// the conversation state threaded through every step, the closed set of step
// names the dispatcher routes between, and the terminal result.
package flow

// Step is the name of a node in the orchestration state machine.
type Step string

// The closed set of routable steps. Specialist workers always hand control
// back to the supervisor; consolidate is the only step that terminates a run
// with a result.
const (
	StepRisk        Step = "risk"
	StepFraud       Step = "fraud"
	StepProjection  Step = "projection"
	StepVisualize   Step = "visualize"
	StepConsolidate Step = "consolidate"
	StepFinish      Step = "finish"
)

// WorkerSteps lists the steps executed by specialist workers.
var WorkerSteps = []Step{StepRisk, StepFraud, StepProjection}

// ParseStep maps free text onto the closed step enumeration. Anything
// unrecognized, including the empty string, coerces to StepFinish so a
// misbehaving routing collaborator can never steer the run off the map.
func ParseStep(s string) Step {
	switch Step(s) {
	case StepRisk, StepFraud, StepProjection, StepVisualize, StepConsolidate, StepFinish:
		return Step(s)
	default:
		return StepFinish
	}
}

// IsWorker reports whether the step runs a specialist worker.
func (s Step) IsWorker() bool {
	switch s {
	case StepRisk, StepFraud, StepProjection:
		return true
	default:
		return false
	}
}
