package req

type CreateWebhookRequest struct {
	Name       string   `json:"name" binding:"required"`
	URL        string   `json:"url" binding:"required"`
	Secret     string   `json:"secret" binding:"required"`
	EventTypes []string `json:"eventTypes"`
	IsActive   *bool    `json:"isActive"`
}

type UpdateWebhookRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type WebhookIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

type TestWebhookRequest struct {
	EndpointID string `json:"endpointId" binding:"required"`
}

type ListDeliveriesRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}
