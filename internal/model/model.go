package model

import (
	"time"

	"gorm.io/gorm"
)

// ModelSource identifies where a simulation model was authored or imported from.
type ModelSource string

const (
	SourceLucidchart ModelSource = "lucidchart"
	SourceMiro       ModelSource = "miro"
	SourceManual     ModelSource = "manual"
	SourceImport     ModelSource = "import"
	SourceTemplate   ModelSource = "template"
)

// Valid reports whether the source is one of the known values.
func (s ModelSource) Valid() bool {
	switch s {
	case SourceLucidchart, SourceMiro, SourceManual, SourceImport, SourceTemplate:
		return true
	}
	return false
}

// SimulationModel represents a simulation model definition. Names are unique
// per tenant among non-deleted rows; Version increments on structural updates.
type SimulationModel struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	TenantID    uint           `json:"tenant_id" gorm:"not null;uniqueIndex:idx_models_tenant_name,where:deleted_at IS NULL;index"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_models_tenant_name,where:deleted_at IS NULL"`
	Source      ModelSource    `json:"source" gorm:"type:varchar(32);not null;default:'manual'"`
	Description string         `json:"description" gorm:"type:text"`
	Version     int            `json:"version" gorm:"not null;default:1"`
	IsTemplate  bool           `json:"is_template" gorm:"default:false"`
	CreatedBy   uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
