package events

import (
	"encoding/json"
	"time"
)

// Envelope gravado na DLQ quando um pedido de resolução não pode ser aplicado.
// Payload guarda a mensagem original sem alteração.
type ResolutionFailed struct {
	Payload  json.RawMessage `json:"payload"`
	Kind     string          `json:"kind"` // ex: "not_found", "invalid_state_transition"
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	Ts       time.Time       `json:"ts"`
}
