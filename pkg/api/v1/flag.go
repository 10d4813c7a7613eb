package v1

import "encoding/json"

// EvaluationResult is the public answer to an evaluation query.
type EvaluationResult struct {
	Enabled bool `json:"enabled"`
}

// FlagSnapshot is the environment-wide flag configuration mirrored to etcd
// for edge evaluators. Overrides are not mirrored.
type FlagSnapshot struct {
	FeatureKey     string `json:"featureKey"`
	EnvironmentKey string `json:"environmentKey"`
	State          string `json:"state"`
	RolloutPct     *int   `json:"rolloutPct,omitempty"`
	Version        int    `json:"version"`
	Revision       int64  `json:"revision,omitempty"` // etcd mod revision, filled on read
}

func (f *FlagSnapshot) ToJSON() string {
	b, err := json.Marshal(f)
	if err != nil {
		panic("rollouthq snapshot serialization failed: " + err.Error())
	}
	return string(b)
}
