package tb

// A Transaction is an opaque payload moved between sequences, drivers,
// monitors, and the scoreboard. The engine only enqueues, dequeues, and
// compares transactions by value; their fields are the business of the
// protocol package that defines them. Once enqueued, a transaction must not
// be mutated.
type Transaction any

// Validator is implemented by transactions that can check their own fields.
// A failing validation at enqueue time is a configuration error.
type Validator interface {
	Validate() error
}
