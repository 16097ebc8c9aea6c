package ir

// Version constants for definitions and the engine.
const (
	// SchemaVersion is the scene definition schema version.
	SchemaVersion = "1"

	// EngineVersion is the patchwork engine version.
	EngineVersion = "0.1.0"
)
