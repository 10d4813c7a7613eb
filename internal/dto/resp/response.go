package resp

// Data wraps every successful response body.
type Data struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error wraps every failed response body.
type Error struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SetFlagStateResponse struct {
	FeatureKey     string `json:"featureKey"`
	EnvironmentKey string `json:"environmentKey"`
	State          string `json:"state"`
	RolloutPct     *int   `json:"rolloutPct"`
	Version        int    `json:"version"`
}

type OverrideResponse struct {
	FeatureKey     string `json:"featureKey"`
	EnvironmentKey string `json:"environmentKey"`
	UserID         string `json:"userId"`
	State          string `json:"state"`
}

type TestWebhookResponse struct {
	EventID string `json:"eventId"`
	Type    string `json:"type"`
}
