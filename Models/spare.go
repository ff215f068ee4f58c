package Models

import "gorm.io/gorm"

// SparePart is master data owned by the catalog service. The engine only reads it.
type SparePart struct {
	gorm.Model
	Code        string `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Description string `json:"description" gorm:"size:255"`
	Brand       string `json:"brand" gorm:"size:100"`
}
