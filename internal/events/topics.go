package events

// Processor event types forwarded by the webhook endpoint.
const (
	TopicTransactionUpdated         = "transaction.updated"
	TopicNequiTokenUpdated          = "nequi_token.updated"
	TopicBancolombiaTransferUpdated = "bancolombia_transfer_token.updated"
	TopicUnknown                    = "unknown"
)

// KnownTopics lists the event types the processor documents.
func KnownTopics() []string {
	return []string{
		TopicTransactionUpdated,
		TopicNequiTokenUpdated,
		TopicBancolombiaTransferUpdated,
	}
}

// TopicFor maps a webhook event type to a bus topic. Unrecognised types are
// still forwarded under their own name; empty types map to TopicUnknown.
func TopicFor(eventType string) string {
	if eventType == "" {
		return TopicUnknown
	}
	return eventType
}
