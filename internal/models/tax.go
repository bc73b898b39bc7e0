package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Tax struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Name      string          `json:"name" db:"name"`
	Rate      decimal.Decimal `json:"rate" db:"rate"`
	IsDefault bool            `json:"is_default" db:"is_default"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type TaxRequest struct {
	Name      string          `json:"name" validate:"required,max=100"`
	Rate      decimal.Decimal `json:"rate"`
	IsDefault bool            `json:"is_default"`
}
