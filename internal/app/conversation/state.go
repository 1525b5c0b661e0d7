package conversation

import "time"

// Step is the position of a user in the conversation state machine.
type Step int

const (
	Idle Step = iota
	AwaitingURLs
	AwaitingSingleTitle
	AwaitingBatchTitle
	AwaitingRenameTitle
)

func (s Step) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingURLs:
		return "awaiting_urls"
	case AwaitingSingleTitle:
		return "awaiting_single_title"
	case AwaitingBatchTitle:
		return "awaiting_batch_title"
	case AwaitingRenameTitle:
		return "awaiting_rename_title"
	default:
		return "unknown"
	}
}

// Item is one validated line of a batch.
type Item struct {
	Line     int    // 1-based line number in the submitted text
	Input    string // URL part as typed
	URL      string // normalized absolute URL
	Title    string
	HasTitle bool // title came from a caption, no prompt needed
}

// Success is a stored link reported in the summary.
type Success struct {
	Title       string
	ShortURL    string
	OriginalURL string
}

// Failure is a rejected line or item with a user-facing reason.
type Failure struct {
	Input  string
	Reason string
}

// State is the per-user conversation data. Only the goroutine serving the
// user touches it.
type State struct {
	Step Step

	// intake
	Batch     bool // more than one line submitted
	Total     int  // valid items in the batch
	Pending   []Item
	Current   *Item
	Successes []Success
	Failures  []Failure

	// rename
	LinkID int64

	// Anchor is the prompt message edited as the flow progresses.
	Anchor    MessageRef
	StartedAt time.Time
}

// Position is the 1-based index of the current item within the batch.
func (s *State) Position() int {
	return s.Total - len(s.Pending)
}
