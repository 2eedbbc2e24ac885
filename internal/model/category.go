package model

type ServiceCategory struct {
	Base
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	Color       *string `json:"color,omitempty" db:"color"`
	Icon        *string `json:"icon,omitempty" db:"icon"`
	IsActive    bool    `json:"is_active" db:"is_active"`
}

type CreateCategoryRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
	Icon        *string `json:"icon" binding:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
	Icon        *string `json:"icon" binding:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active"`
}

type CategoryFilters struct {
	IsActive *bool
}
