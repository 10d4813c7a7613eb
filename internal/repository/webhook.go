package repository

import (
	"context"
	"errors"

	"rollouthq/internal/model"

	"gorm.io/gorm"
)

// WebhookEndpointInterface is the endpoint directory. GetByID returns (nil, nil) when absent.
type WebhookEndpointInterface interface {
	Create(ctx context.Context, endpoint *model.WebhookEndpoint) error
	GetByID(ctx context.Context, id string) (*model.WebhookEndpoint, error)
	List(ctx context.Context) ([]*model.WebhookEndpoint, error)
	ListActive(ctx context.Context) ([]*model.WebhookEndpoint, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DeliveryInterface is the append-only delivery ledger.
type DeliveryInterface interface {
	Create(ctx context.Context, delivery *model.WebhookDelivery) error
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]model.WebhookDelivery, error)
}

type WebhookEndpointRepository struct {
	db *gorm.DB
}

func NewWebhookEndpointRepository(db *gorm.DB) *WebhookEndpointRepository {
	return &WebhookEndpointRepository{db: db}
}

func (r *WebhookEndpointRepository) Create(ctx context.Context, endpoint *model.WebhookEndpoint) error {
	return translate(r.db.WithContext(ctx).Create(endpoint).Error, "webhook endpoint")
}

func (r *WebhookEndpointRepository) GetByID(ctx context.Context, id string) (*model.WebhookEndpoint, error) {
	var ep model.WebhookEndpoint
	if err := r.db.WithContext(ctx).First(&ep, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ep, nil
}

func (r *WebhookEndpointRepository) List(ctx context.Context) ([]*model.WebhookEndpoint, error) {
	var eps []*model.WebhookEndpoint
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&eps).Error
	return eps, err
}

func (r *WebhookEndpointRepository) ListActive(ctx context.Context) ([]*model.WebhookEndpoint, error) {
	var eps []*model.WebhookEndpoint
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&eps).Error
	return eps, err
}

func (r *WebhookEndpointRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.WebhookEndpoint{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *WebhookEndpointRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.WebhookEndpoint{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, delivery *model.WebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *DeliveryRepository) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var deliveries []model.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("endpoint_id = ?", endpointID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}
