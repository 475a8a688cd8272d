package redis

const (
	// KeyPrefix namespaces every key written by the store
	KeyPrefix = "statuspage:"

	// KeyHistoryComponents is the set of component IDs that own day records
	KeyHistoryComponents = KeyPrefix + "history:components"

	// KeyIncidentsAll indexes every incident by creation time (ms)
	KeyIncidentsAll = KeyPrefix + "incidents:all"
	// KeyIncidentsOpen indexes unresolved incidents by creation time (ms)
	KeyIncidentsOpen = KeyPrefix + "incidents:open"
	// KeyIncidentsResolved indexes resolved incidents by resolution time (ms)
	KeyIncidentsResolved = KeyPrefix + "incidents:resolved"

	// KeyMaintenanceAll indexes maintenance windows by end time (ms)
	KeyMaintenanceAll = KeyPrefix + "maintenance:all"
)

// HistoryStatusKey returns the hash of date -> worst status for a component
func HistoryStatusKey(componentID string) string {
	return KeyPrefix + "history:" + componentID + ":status"
}

// HistoryUptimeKey returns the hash of date -> uptime percentage for a component
func HistoryUptimeKey(componentID string) string {
	return KeyPrefix + "history:" + componentID + ":uptime"
}

// HistoryDaysKey returns the sorted set of recorded dates (score = day number)
func HistoryDaysKey(componentID string) string {
	return KeyPrefix + "history:" + componentID + ":days"
}

// IncidentKey returns the Redis key for an incident by ID
func IncidentKey(id string) string {
	return KeyPrefix + "incident:" + id
}

// IncidentUpdatesKey returns the list of updates of an incident
func IncidentUpdatesKey(id string) string {
	return KeyPrefix + "incident:" + id + ":updates"
}

// MaintenanceKey returns the Redis key for a maintenance window by ID
func MaintenanceKey(id string) string {
	return KeyPrefix + "maintenance:" + id
}
