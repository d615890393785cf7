package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"medisupply/internal/inventory"
)

// newRestyClient builds a resty client with a bounded request timeout.
// A call that outlives the timeout fails like any other transport error.
func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// classify translates a resty response into the client error taxonomy.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return &ConnectionError{Err: err}
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode() == http.StatusBadRequest,
		resp.StatusCode() == http.StatusUnprocessableEntity:
		return &ValidationError{Detail: resp.String()}
	default:
		return &HTTPError{Status: resp.StatusCode(), Body: resp.String()}
	}
}

// HTTPCustomerService is a CustomerService over HTTP.
type HTTPCustomerService struct {
	http *resty.Client
}

// NewHTTPCustomerService constructs a client for the given base URL.
func NewHTTPCustomerService(baseURL string, timeout time.Duration) *HTTPCustomerService {
	return &HTTPCustomerService{http: newRestyClient(baseURL, timeout)}
}

func (c *HTTPCustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var customer Customer
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&customer).
		Get(fmt.Sprintf("/clients/%s", id))
	if err := classify(resp, err); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// HTTPSellerService is a SellerService over HTTP.
type HTTPSellerService struct {
	http *resty.Client
}

// NewHTTPSellerService constructs a client for the given base URL.
func NewHTTPSellerService(baseURL string, timeout time.Duration) *HTTPSellerService {
	return &HTTPSellerService{http: newRestyClient(baseURL, timeout)}
}

func (c *HTTPSellerService) GetSeller(ctx context.Context, id uuid.UUID) (Seller, error) {
	var seller Seller
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&seller).
		Get(fmt.Sprintf("/sellers/%s", id))
	if err := classify(resp, err); err != nil {
		return Seller{}, err
	}
	return seller, nil
}

func (c *HTTPSellerService) ValidateVisit(ctx context.Context, visitID, sellerID uuid.UUID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/sellers/%s/visits/%s", sellerID, visitID))
	return classify(resp, err)
}

func (c *HTTPSellerService) CreateSeller(ctx context.Context, input NewSellerInput) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(input).
		Post("/sellers")
	return classify(resp, err)
}

// HTTPClientService is a ClientService over HTTP.
type HTTPClientService struct {
	http *resty.Client
}

// NewHTTPClientService constructs a client for the given base URL.
func NewHTTPClientService(baseURL string, timeout time.Duration) *HTTPClientService {
	return &HTTPClientService{http: newRestyClient(baseURL, timeout)}
}

func (c *HTTPClientService) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	var client Client
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&client).
		Get(fmt.Sprintf("/clients/%s", id))
	if err := classify(resp, err); err != nil {
		return Client{}, err
	}
	return client, nil
}

func (c *HTTPClientService) AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"vendedor_asignado_id": sellerID.String()}).
		Patch(fmt.Sprintf("/clients/%s/seller", clientID))
	return classify(resp, err)
}

func (c *HTTPClientService) CreateClient(ctx context.Context, input NewClientInput) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(input).
		Post("/clients")
	return classify(resp, err)
}

// HTTPInventoryService is an InventoryService over HTTP.
type HTTPInventoryService struct {
	http *resty.Client
}

// NewHTTPInventoryService constructs a client for the given base URL.
func NewHTTPInventoryService(baseURL string, timeout time.Duration) *HTTPInventoryService {
	return &HTTPInventoryService{http: newRestyClient(baseURL, timeout)}
}

func (c *HTTPInventoryService) Allocate(ctx context.Context, productID uuid.UUID, quantity int, minExpiration time.Time) ([]inventory.Allocation, error) {
	var allocations []inventory.Allocation
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"producto_id":         productID.String(),
			"required_quantity":   quantity,
			"min_expiration_date": minExpiration.Format(time.RFC3339),
		}).
		SetResult(&allocations).
		Post("/inventories/allocate")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return allocations, nil
}
