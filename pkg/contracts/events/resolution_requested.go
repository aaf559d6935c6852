package events

// Pedido de resolução consumido pelo resolution-worker.
// Source identifica quem decidiu o resultado (ex: "stream-operator").
type ResolutionRequested struct {
	BetID     string `json:"bet_id"`
	BetResult string `json:"bet_result"` // "Win" | "Lose"
	Source    string `json:"source,omitempty"`
}
