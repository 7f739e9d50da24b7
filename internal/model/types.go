package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// HealthState is the compartment of an agent in the epidemic model.
type HealthState string

const (
	Susceptible HealthState = "susceptible"
	Infected    HealthState = "infected"
	Recovered   HealthState = "recovered"
)

// ModelRow is one model-level observation at a collection step.
type ModelRow struct {
	Step   int                `json:"step"`
	Values map[string]float64 `json:"values"`
}

// AgentRow is one agent-level observation at a collection step.
type AgentRow struct {
	Step    int                `json:"step"`
	AgentID int                `json:"agent_id"`
	Values  map[string]float64 `json:"values"`
}

// RunRecord describes one completed simulation instance.
type RunRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Params       map[string]any `json:"params,omitempty"`
	Seed         int64          `json:"seed"`
	Steps        int            `json:"steps"`
	CreatedAtUTC string         `json:"created_at_utc,omitempty"`
}

// BatchRecord describes one completed parameter sweep.
type BatchRecord struct {
	VersionedRecord
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Combinations int      `json:"combinations"`
	Iterations   int      `json:"iterations"`
	RunIDs       []string `json:"run_ids,omitempty"`
	CreatedAtUTC string   `json:"created_at_utc,omitempty"`
}
