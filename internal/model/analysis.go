package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Analysis is a named collection of parameter defaults attached to a
// simulation model. Child scenarios inherit its defaults unless they
// override them. Names are unique per model among non-deleted rows.
type Analysis struct {
	ID                uint            `json:"id" gorm:"primarykey"`
	TenantID          uint            `json:"tenant_id" gorm:"index;not null"`
	ModelID           uint            `json:"model_id" gorm:"not null;uniqueIndex:idx_analyses_model_name,where:deleted_at IS NULL;index"`
	Name              string          `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_analyses_model_name,where:deleted_at IS NULL"`
	Description       string          `json:"description" gorm:"type:text"`
	DefaultTimePeriod string          `json:"default_time_period" gorm:"type:varchar(64)"`
	DefaultParameters json.RawMessage `json:"default_parameters,omitempty" gorm:"type:jsonb"`
	CreatedBy         uint            `json:"created_by" gorm:"index;not null"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `json:"-" gorm:"index"`
}
