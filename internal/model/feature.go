package model

import (
	"time"

	"gorm.io/gorm"
)

type Feature struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Key         string    `json:"key" gorm:"size:128;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Archived    bool      `json:"archived" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (f *Feature) BeforeCreate(*gorm.DB) error {
	newID(&f.ID)
	return nil
}

type Environment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Key       string    `json:"key" gorm:"size:64;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *Environment) BeforeCreate(*gorm.DB) error {
	newID(&e.ID)
	return nil
}
