package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHTTPClientService_GetClient(t *testing.T) {
	clientID := uuid.New()
	sellerID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clients/"+clientID.String() {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "` + clientID.String() + `",
			"nombre_institucion": "Hospital Central",
			"ciudad": "Bogota",
			"pais": "Colombia",
			"vendedor_asignado_id": "` + sellerID.String() + `"
		}`))
	}))
	defer server.Close()

	service := NewHTTPClientService(server.URL, time.Second)
	client, err := service.GetClient(context.Background(), clientID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if client.InstitutionName != "Hospital Central" {
		t.Fatalf("unexpected client: %+v", client)
	}
	if client.AssignedSellerID == nil || *client.AssignedSellerID != sellerID {
		t.Fatalf("expected seller assignment, got %+v", client.AssignedSellerID)
	}
}

func TestHTTPClientService_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	service := NewHTTPClientService(server.URL, time.Second)
	_, err := service.GetClient(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPClientService_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"nit already registered"}`))
	}))
	defer server.Close()

	service := NewHTTPClientService(server.URL, time.Second)
	err := service.CreateClient(context.Background(), NewClientInput{})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHTTPClientService_ServerErrorIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := NewHTTPClientService(server.URL, time.Second)
	err := service.AssignSeller(context.Background(), uuid.New(), uuid.New())

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", httpErr.Status)
	}
}

func TestHTTPCustomerService_ConnectionError(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	service := NewHTTPCustomerService(server.URL, 100*time.Millisecond)
	_, err := service.GetCustomer(context.Background(), uuid.New())

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}
