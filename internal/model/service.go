package model

// Service is a category of work employers offer, e.g. cleaning or plumbing.
type Service struct {
	Base
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Icon        string `db:"icon" json:"icon"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

type ServiceRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=2000"`
	Icon        string `json:"icon" binding:"max=50"`
	IsActive    *bool  `json:"is_active"`
}
