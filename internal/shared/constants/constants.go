package constants

// Database table names
const (
	TableSubscriptions   = "subscriptions"
	TableLedgerEntries   = "ledger_entries"
	TableProcessedEvents = "processed_events"
)
