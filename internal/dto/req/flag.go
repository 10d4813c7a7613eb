package req

type EvaluateRequest struct {
	FeatureKey string `form:"featureKey" binding:"required"`
	Env        string `form:"env" binding:"required"`
	UserID     string `form:"userId"`
}

type SetFlagStateRequest struct {
	EnvironmentKey string `json:"env" binding:"required"`
	State          string `json:"state" binding:"required"`
	RolloutPct     *int   `json:"rolloutPct"`
}

type UpsertOverrideRequest struct {
	FeatureKey     string `json:"featureKey" binding:"required"`
	EnvironmentKey string `json:"env" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
	State          string `json:"state" binding:"required"`
}

type DeleteOverrideRequest struct {
	FeatureKey     string `form:"featureKey" binding:"required"`
	EnvironmentKey string `form:"env" binding:"required"`
	UserID         string `form:"userId" binding:"required"`
}

type ListAuditsRequest struct {
	FeatureKey     string `form:"featureKey"`
	EnvironmentKey string `form:"env"`
	Action         string `form:"action"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=500"`
}
