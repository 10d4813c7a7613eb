package model

import "time"

// OutboxTask holds a flag snapshot that still has to reach etcd.
// Key is the full etcd key, Payload the JSON snapshot.
type OutboxTask struct {
	ID         int64        `json:"id" gorm:"primaryKey"`
	Key        string       `json:"key" gorm:"size:255;index"`
	Payload    string       `json:"payload" gorm:"type:text"`
	Status     OutboxStatus `json:"status" gorm:"index"`
	RetryCount int          `json:"retryCount" gorm:"default:0"`
	TraceID    string       `json:"traceId" gorm:"size:64;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OutboxStatus int

const (
	OutboxPending OutboxStatus = iota
	OutboxCompleted
	OutboxFailed
)

// MaxOutboxRetries is the number of failed syncs after which a task is parked as failed.
const MaxOutboxRetries = 5
