package repository

// Outcome reports what a dedup-aware write actually did.
type Outcome string

const (
	// OutcomeInserted means a new durable row was created.
	OutcomeInserted Outcome = "inserted"
	// OutcomeLinkedOnly means the news item already existed but at least one
	// new symbol link was added.
	OutcomeLinkedOnly Outcome = "linked_only"
	// OutcomeSkipped means the write was a complete no-op.
	OutcomeSkipped Outcome = "skipped"
)
