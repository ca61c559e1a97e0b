package booking

import "time"

// Rating is the customer's post-trip score for a completed booking.
type Rating struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}
