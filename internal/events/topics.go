package events

// Topic names are configurable; these are the env defaults.
const (
	DefaultTopicTicketIssued  = "ticket-issued"
	DefaultTopicTicketScanned = "ticket-scanned"
)
