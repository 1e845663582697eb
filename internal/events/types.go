package events

// Topic enumerates the engine's internal event streams.
type Topic string

const (
	TopicSignal       Topic = "signal"        // payload sim.Signal
	TopicFill         Topic = "fill"          // payload sim.Fill
	TopicSimFailed    Topic = "sim.failed"    // payload sim.Signal carrying the error
	TopicRunStarted   Topic = "run.started"   // payload run ID
	TopicRunCompleted Topic = "run.completed" // payload run ID
)
