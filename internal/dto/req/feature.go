package req

type CreateFeatureRequest struct {
	Key         string `json:"key" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateFeatureRequest is a partial update; absent fields are left unchanged.
type UpdateFeatureRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

type ListFeaturesRequest struct {
	Search          string `form:"search"`
	IncludeArchived bool   `form:"includeArchived"`
}

type FeatureKeyRequest struct {
	Key string `uri:"key" binding:"required"`
}

type CreateEnvironmentRequest struct {
	Key  string `json:"key" binding:"required"`
	Name string `json:"name" binding:"required"`
}
