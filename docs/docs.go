// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/signup": {"post": {"tags": ["auth"], "summary": "Create an account", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Sign in", "responses": {"200": {"description": "Session token"}, "401": {"description": "Invalid credentials"}}}},
        "/auth/logout": {"post": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Revoke the current session", "responses": {"204": {"description": "Signed out"}}}},
        "/auth/me": {"get": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Current user", "responses": {"200": {"description": "User"}}}},
        "/auth/onboard": {"post": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Create a tenant for the current user", "responses": {"201": {"description": "Tenant and new session"}}}},
        "/auth/forgot-password": {"post": {"tags": ["auth"], "summary": "Request a password reset link", "responses": {"202": {"description": "Acknowledged whether or not the account exists"}}}},
        "/auth/reset-password": {"post": {"tags": ["auth"], "summary": "Set a new password with a reset token", "responses": {"200": {"description": "Password changed"}, "400": {"description": "Invalid or expired token"}}}},
        "/customers": {
            "get": {"tags": ["customers"], "security": [{"BearerAuth": []}], "summary": "List customers", "responses": {"200": {"description": "Page of customers"}}},
            "post": {"tags": ["customers"], "security": [{"BearerAuth": []}], "summary": "Create a customer", "responses": {"201": {"description": "Customer"}}}
        },
        "/customers/{id}": {"get": {"tags": ["customers"], "security": [{"BearerAuth": []}], "summary": "Get a customer", "responses": {"200": {"description": "Customer"}, "404": {"description": "Not found"}}}},
        "/taxes": {
            "get": {"tags": ["taxes"], "security": [{"BearerAuth": []}], "summary": "List tax rates, default first", "responses": {"200": {"description": "Taxes"}}},
            "post": {"tags": ["taxes"], "security": [{"BearerAuth": []}], "summary": "Create a tax rate", "responses": {"201": {"description": "Tax"}}}
        },
        "/taxes/{id}": {
            "get": {"tags": ["taxes"], "security": [{"BearerAuth": []}], "summary": "Get a tax rate", "responses": {"200": {"description": "Tax"}}},
            "put": {"tags": ["taxes"], "security": [{"BearerAuth": []}], "summary": "Update a tax rate", "responses": {"200": {"description": "Tax"}}},
            "delete": {"tags": ["taxes"], "security": [{"BearerAuth": []}], "summary": "Delete a tax rate", "responses": {"204": {"description": "Deleted"}}}
        },
        "/invoices": {
            "get": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "List invoices", "responses": {"200": {"description": "Page of invoices"}}},
            "post": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Create a draft invoice", "responses": {"201": {"description": "Invoice"}}}
        },
        "/invoices/{id}": {
            "get": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Get an invoice", "responses": {"200": {"description": "Invoice"}}},
            "delete": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Delete a draft invoice", "responses": {"204": {"description": "Deleted"}}}
        },
        "/invoices/{id}/send": {"post": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Send an invoice to its customer", "responses": {"200": {"description": "Invoice"}}}},
        "/invoices/{id}/payments": {
            "get": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "List payments", "responses": {"200": {"description": "Payments"}}},
            "post": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Record a manual payment", "responses": {"201": {"description": "Applied"}, "200": {"description": "Duplicate reference"}}}
        },
        "/invoices/{id}/pdf": {"get": {"tags": ["invoices"], "security": [{"BearerAuth": []}], "summary": "Export the invoice as PDF", "responses": {"200": {"description": "Presigned download URL"}}}},
        "/public/invoices/{id}": {"get": {"tags": ["public"], "summary": "Customer view of a sent invoice", "responses": {"200": {"description": "Invoice view"}, "404": {"description": "Not found"}}}},
        "/audit-logs": {"get": {"tags": ["audit"], "security": [{"BearerAuth": []}], "summary": "List audit entries of the tenant", "responses": {"200": {"description": "Page of entries"}}}},
        "/webhooks/razorpay": {"post": {"tags": ["webhooks"], "summary": "Razorpay webhook receiver", "responses": {"200": {"description": "Acknowledged"}, "401": {"description": "Bad signature"}}}},
        "/admin/tenants": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "List tenants", "responses": {"200": {"description": "Page of tenants"}}}},
        "/admin/tenants/{id}": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Get a tenant", "responses": {"200": {"description": "Tenant"}}}},
        "/admin/tenants/{id}/status": {"patch": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Activate, suspend or delete a tenant", "responses": {"200": {"description": "Tenant"}}}},
        "/admin/audit-logs": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "List audit entries across tenants", "responses": {"200": {"description": "Page of entries"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "invoicehub API",
	Description:      "Multi-tenant invoicing: customers, taxes, invoices, payments and audit trail.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
