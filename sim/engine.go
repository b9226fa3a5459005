package sim

// TimeTeller tells the current simulated time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler accepts events to be handled in the future.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler runs once the engine has no more events to process.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// SimulationEndHandlerFunc turns a function into a SimulationEndHandler.
type SimulationEndHandlerFunc func(now VTimeInSec)

// Handle calls the function.
func (f SimulationEndHandlerFunc) Handle(now VTimeInSec) {
	f(now)
}

// An Engine drives a discrete event simulation. Components schedule events
// on it and the engine hands them back in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes events until none is left.
	Run() error

	// Pause blocks Run before the next event until Continue is called.
	Pause()

	// Continue resumes a paused Run.
	Continue()

	// RegisterSimulationEndHandler adds a handler that Finished calls.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished calls the simulation end handlers in registration order.
	Finished()
}
