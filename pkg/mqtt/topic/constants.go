package topic

// Standard MQTT wildcards.
const (
	// Wildcard matches exactly one topic level.
	Wildcard = "+"

	// MultiWildcard matches the remaining levels. It must come last.
	MultiWildcard = "#"
)
