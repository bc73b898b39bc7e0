package repositories

import (
	"invoicehub/internal/models"

	"github.com/google/uuid"
)

func activeScope(id uuid.UUID) models.TenantScope {
	scope, err := models.ScopeFor(&models.Tenant{ID: id, Status: models.TenantStatusActive})
	if err != nil {
		panic(err)
	}
	return scope
}

func stringPtr(s string) *string {
	return &s
}
