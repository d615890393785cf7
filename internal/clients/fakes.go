package clients

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/inventory"
)

// NewInMemoryClientService constructs an in-memory client service.
func NewInMemoryClientService() *InMemoryClientService {
	return &InMemoryClientService{
		clients:     make(map[uuid.UUID]Client),
		assignments: make(map[uuid.UUID]uuid.UUID),
	}
}

// InMemoryClientService tracks clients and seller assignments in memory.
type InMemoryClientService struct {
	mu          sync.Mutex
	clients     map[uuid.UUID]Client
	assignments map[uuid.UUID]uuid.UUID
	created     []NewClientInput

	GetErr    error
	AssignErr error
	CreateErr error
}

// Seed stores a client record for later lookup.
func (s *InMemoryClientService) Seed(client Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
}

func (s *InMemoryClientService) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return Client{}, s.GetErr
	}
	client, ok := s.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return client, nil
}

func (s *InMemoryClientService) AssignSeller(ctx context.Context, clientID, sellerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AssignErr != nil {
		return s.AssignErr
	}
	client, ok := s.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	assigned := sellerID
	client.AssignedSellerID = &assigned
	s.clients[clientID] = client
	s.assignments[clientID] = sellerID
	return nil
}

func (s *InMemoryClientService) CreateClient(ctx context.Context, input NewClientInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.created = append(s.created, input)
	return nil
}

// Assignment returns the seller assigned to a client, if any.
func (s *InMemoryClientService) Assignment(clientID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sellerID, ok := s.assignments[clientID]
	return sellerID, ok
}

// CreatedClients returns the client records created so far.
func (s *InMemoryClientService) CreatedClients() []NewClientInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NewClientInput, len(s.created))
	copy(out, s.created)
	return out
}

// NewInMemoryCustomerService constructs an in-memory customer service.
func NewInMemoryCustomerService() *InMemoryCustomerService {
	return &InMemoryCustomerService{customers: make(map[uuid.UUID]Customer)}
}

// InMemoryCustomerService serves seeded customers from memory.
type InMemoryCustomerService struct {
	mu        sync.Mutex
	customers map[uuid.UUID]Customer
	calls     int

	GetErr error
}

// Seed stores a customer for later lookup.
func (s *InMemoryCustomerService) Seed(customer Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
}

func (s *InMemoryCustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.GetErr != nil {
		return Customer{}, s.GetErr
	}
	customer, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return customer, nil
}

// Calls reports how many lookups were made.
func (s *InMemoryCustomerService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// NewInMemorySellerService constructs an in-memory seller service.
func NewInMemorySellerService() *InMemorySellerService {
	return &InMemorySellerService{sellers: make(map[uuid.UUID]Seller)}
}

// InMemorySellerService serves seeded sellers from memory.
type InMemorySellerService struct {
	mu      sync.Mutex
	sellers map[uuid.UUID]Seller
	created []NewSellerInput

	GetErr      error
	ValidateErr error
	CreateErr   error
}

// Seed stores a seller for later lookup.
func (s *InMemorySellerService) Seed(seller Seller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[seller.ID] = seller
}

func (s *InMemorySellerService) GetSeller(ctx context.Context, id uuid.UUID) (Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return Seller{}, s.GetErr
	}
	seller, ok := s.sellers[id]
	if !ok {
		return Seller{}, ErrNotFound
	}
	return seller, nil
}

func (s *InMemorySellerService) ValidateVisit(ctx context.Context, visitID, sellerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ValidateErr
}

func (s *InMemorySellerService) CreateSeller(ctx context.Context, input NewSellerInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.created = append(s.created, input)
	return nil
}

// CreatedSellers returns the seller records created so far.
func (s *InMemorySellerService) CreatedSellers() []NewSellerInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NewSellerInput, len(s.created))
	copy(out, s.created)
	return out
}

// NewInMemoryInventoryService constructs an in-memory allocator backed by
// ledger records.
func NewInMemoryInventoryService() *InMemoryInventoryService {
	return &InMemoryInventoryService{ledgers: make(map[uuid.UUID][]*inventory.Ledger)}
}

// InMemoryInventoryService allocates against in-memory ledgers in FEFO
// order, mirroring the inventory service's behavior.
type InMemoryInventoryService struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID][]*inventory.Ledger

	AllocateErr error
}

// Seed adds a ledger record for a product.
func (s *InMemoryInventoryService) Seed(l *inventory.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[l.ProductID] = append(s.ledgers[l.ProductID], l)
}

func (s *InMemoryInventoryService) Allocate(ctx context.Context, productID uuid.UUID, quantity int, minExpiration time.Time) ([]inventory.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AllocateErr != nil {
		return nil, s.AllocateErr
	}

	candidates := make([]*inventory.Ledger, 0)
	for _, l := range s.ledgers[productID] {
		if !l.ExpirationDate.Before(minExpiration) && l.Available() > 0 {
			candidates = append(candidates, l)
		}
	}
	sortByExpiration(candidates)

	remaining := quantity
	var allocations []inventory.Allocation
	for _, l := range candidates {
		if remaining == 0 {
			break
		}
		take := l.Available()
		if take > remaining {
			take = remaining
		}
		if err := l.Reserve(take); err != nil {
			return allocations, err
		}
		allocations = append(allocations, inventory.Allocation{
			InventoryID:    l.ID,
			ProductID:      l.ProductID,
			Quantity:       take,
			ProductPrice:   l.ProductPrice,
			ProductName:    l.ProductName,
			ProductSKU:     l.ProductSKU,
			WarehouseID:    l.WarehouseID,
			WarehouseName:  l.WarehouseName,
			WarehouseCity:  l.WarehouseCity,
			BatchNumber:    l.BatchNumber,
			ExpirationDate: l.ExpirationDate,
		})
		remaining -= take
	}

	if remaining > 0 {
		return allocations, &inventory.InsufficientInventoryError{
			Requested: quantity,
			Available: quantity - remaining,
		}
	}

	return allocations, nil
}

// Reserved reports the reserved quantity on one seeded ledger.
func (s *InMemoryInventoryService) Reserved(inventoryID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ledgers := range s.ledgers {
		for _, l := range ledgers {
			if l.ID == inventoryID {
				return l.ReservedQuantity
			}
		}
	}
	return 0
}

func sortByExpiration(ledgers []*inventory.Ledger) {
	sort.Slice(ledgers, func(i, j int) bool {
		return ledgers[i].ExpirationDate.Before(ledgers[j].ExpirationDate)
	})
}
