package domain

// Practice is a catalog entry. The catalog is configuration, not per-user state.
type Practice struct {
	Key       string `json:"key"       yaml:"key"`
	Label     string `json:"label"     yaml:"label"`
	Points    int    `json:"points"    yaml:"points"`
	MaxPerDay int    `json:"maxPerDay" yaml:"maxPerDay"`
}
