package models

// Turn roles. Only these two appear in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChartPayload holds the numeric series parsed from a graph marker in
// generated text. Transient; exists only within one request.
type ChartPayload struct {
	X []float64 `json:"x_values"`
	Y []float64 `json:"y_values"`
}
