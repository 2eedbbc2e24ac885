package model

type Client struct {
	Base
	Name    string  `json:"name" db:"name"`
	Email   *string `json:"email,omitempty" db:"email"`
	Phone   *string `json:"phone,omitempty" db:"phone"`
	Address *string `json:"address,omitempty" db:"address"`
	City    *string `json:"city,omitempty" db:"city"`
	Notes   *string `json:"notes,omitempty" db:"notes"`
}

type CreateClientRequest struct {
	Name    string  `json:"name" binding:"required,max=200"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Address *string `json:"address" binding:"omitempty,max=500"`
	City    *string `json:"city" binding:"omitempty,max=100"`
	Notes   *string `json:"notes"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Address *string `json:"address" binding:"omitempty,max=500"`
	City    *string `json:"city" binding:"omitempty,max=100"`
	Notes   *string `json:"notes"`
}

type BulkCreateClientsRequest struct {
	Clients []CreateClientRequest `json:"clients" binding:"required,min=1,max=500,dive"`
}

type ClientFilters struct {
	Pagination
	SortOrder
	Search string
	City   string
}
