package constraints

// FlagState is the environment-wide configured state of a feature.
type FlagState string

const (
	StateOn         FlagState = "ON"
	StateOff        FlagState = "OFF"
	StatePercentage FlagState = "PERCENTAGE"
)

func (s FlagState) Valid() bool {
	switch s {
	case StateOn, StateOff, StatePercentage:
		return true
	}
	return false
}

// ValidForOverride reports whether s may be stored on a user override.
// Overrides are binary, percentage rollout only applies to assignments.
func (s FlagState) ValidForOverride() bool {
	return s == StateOn || s == StateOff
}

// AuditAction labels an administrative mutation. It doubles as the webhook event type.
type AuditAction string

const (
	ActionFlagSetState      AuditAction = "FLAG_SET_STATE"
	ActionOverrideUpsert    AuditAction = "OVERRIDE_UPSERT"
	ActionOverrideDelete    AuditAction = "OVERRIDE_DELETE"
	ActionFeatureCreate     AuditAction = "FEATURE_CREATE"
	ActionFeatureUpdate     AuditAction = "FEATURE_UPDATE"
	ActionEnvironmentCreate AuditAction = "ENVIRONMENT_CREATE"
	ActionWebhookCreate     AuditAction = "WEBHOOK_CREATE"
	ActionWebhookUpdate     AuditAction = "WEBHOOK_UPDATE"
	ActionWebhookDelete     AuditAction = "WEBHOOK_DELETE"
)

var knownActions = map[AuditAction]struct{}{
	ActionFlagSetState:      {},
	ActionOverrideUpsert:    {},
	ActionOverrideDelete:    {},
	ActionFeatureCreate:     {},
	ActionFeatureUpdate:     {},
	ActionEnvironmentCreate: {},
	ActionWebhookCreate:     {},
	ActionWebhookUpdate:     {},
	ActionWebhookDelete:     {},
}

func (a AuditAction) Known() bool {
	_, ok := knownActions[a]
	return ok
}

// DeliveryStatus is the outcome of a single webhook delivery attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "SUCCESS"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// Role values carried in access tokens.
const (
	RoleAdmin  = "ADMIN"
	RoleViewer = "VIEWER"
)
