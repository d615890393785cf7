package clients

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/inventory"
)

// Customer is the order service's view of a customer record.
type Customer struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Email   string    `json:"email"`
	Address string    `json:"address"`
	City    string    `json:"city"`
	Country string    `json:"country"`
}

// Seller is a seller record as exposed by the seller service.
type Seller struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Client is an institutional client record, including its seller
// assignment. A nil AssignedSellerID means the client is unassigned.
type Client struct {
	ID               uuid.UUID  `json:"id"`
	InstitutionName  string     `json:"nombre_institucion"`
	Address          string     `json:"direccion"`
	City             string     `json:"ciudad"`
	Country          string     `json:"pais"`
	AssignedSellerID *uuid.UUID `json:"vendedor_asignado_id"`
}

// NewClientInput is the payload for creating a client record during the
// signup saga.
type NewClientInput struct {
	CognitoUserID   string `json:"cognito_user_id"`
	Email           string `json:"email"`
	Phone           string `json:"telefono"`
	InstitutionName string `json:"nombre_institucion"`
	InstitutionType string `json:"tipo_institucion"`
	TaxID           string `json:"nit"`
	Address         string `json:"direccion"`
	City            string `json:"ciudad"`
	Country         string `json:"pais"`
	Representative  string `json:"representante"`
}

// NewSellerInput is the payload for creating a seller record during the
// provisioning saga.
type NewSellerInput struct {
	CognitoUserID string `json:"cognito_user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Phone         string `json:"telefono"`
	Zone          string `json:"zona"`
}

// CustomerService fetches customer records from the client service.
type CustomerService interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
}

// SellerService talks to the seller service.
type SellerService interface {
	GetSeller(ctx context.Context, id uuid.UUID) (Seller, error)
	ValidateVisit(ctx context.Context, visitID, sellerID uuid.UUID) error
	CreateSeller(ctx context.Context, input NewSellerInput) error
}

// ClientService talks to the client service.
type ClientService interface {
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) error
	CreateClient(ctx context.Context, input NewClientInput) error
}

// InventoryService allocates stock in the inventory service.
type InventoryService interface {
	Allocate(ctx context.Context, productID uuid.UUID, quantity int, minExpiration time.Time) ([]inventory.Allocation, error)
}
