package domain

// Activity is the rich "doing X" descriptor a client publishes, e.g. a game
// being played or a track being listened to. The gateway never interprets it.
type Activity struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Details   string `json:"details,omitempty"`
	State     string `json:"state,omitempty"`
	StartedAt int64  `json:"startedAt,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	URL       string `json:"url,omitempty"`
}
