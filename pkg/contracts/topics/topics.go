package topics

const (
	// Wagers
	WagerPlaced   = "wager_placed"
	WagerResolved = "wager_resolved"
	WagerDeleted  = "wager_deleted"

	// Pedidos de resolução vindos do operador da stream
	WagerResolutionRequested = "wager_resolution_requested"

	// DLQs
	WagerResolutionDLQ = "wager_resolution_dlq"
)
