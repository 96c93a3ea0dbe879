package phlex

// message is the envelope the scheduler moves along edges. Stores are
// carried by pointer and shared immutably between in-flight messages.
//
// seq is assigned per originating node and is totally ordered within
// it; downstream sequencers use it to restore emission order after
// concurrent execution.
type message struct {
	store      *Store
	originator string
	seq        uint64
}
