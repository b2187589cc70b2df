package inbox

import "time"

// Record marks one payload hash as processed. Its existence is the
// deduplication guarantee: a hash with a record is never dispatched again.
type Record struct {
	PayloadHash string
	ReceivedAt  time.Time
}
