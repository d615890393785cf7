package clients

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCircuitOpen indicates the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// RetryPolicy controls transport-level retries for idempotent reads.
// Writes are never routed through it: a failed write is a saga failure,
// not something to retry behind the saga's back.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      func(time.Duration) time.Duration
	Sleep       func(context.Context, time.Duration) error
	ShouldRetry func(error) bool
}

// Do executes the function with retries according to the policy.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = retryConnectionErrors
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == attempts || !shouldRetry(err) {
			return err
		}

		delay := p.BaseDelay
		if delay > 0 {
			delay = delay << (attempt - 1)
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		delay = jitter(delay)
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// retryConnectionErrors retries transport failures only. Not-found,
// validation and HTTP status errors are deterministic answers; retrying
// them just repeats the question.
func retryConnectionErrors(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Now          func() time.Time
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker stops calls to a peer after repeated failures.
type CircuitBreaker struct {
	mu         sync.Mutex
	maxFails   int
	resetAfter time.Duration
	now        func() time.Time

	state          circuitState
	failures       int
	openedAt       time.Time
	halfOpenFlight bool
}

// NewCircuitBreaker constructs a circuit breaker with sane defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	maxFails := cfg.MaxFailures
	if maxFails < 1 {
		maxFails = 1
	}
	resetAfter := cfg.ResetTimeout
	if resetAfter <= 0 {
		resetAfter = 2 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		maxFails:   maxFails,
		resetAfter: resetAfter,
		now:        now,
		state:      circuitClosed,
	}
}

// Execute runs the given function while enforcing breaker state.
func (c *CircuitBreaker) Execute(fn func() error) error {
	if c == nil {
		return fn()
	}

	now := c.now()

	c.mu.Lock()
	switch c.state {
	case circuitOpen:
		if now.Sub(c.openedAt) < c.resetAfter {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
		c.state = circuitHalfOpen
	case circuitHalfOpen:
		if c.halfOpenFlight {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	if c.state == circuitHalfOpen {
		c.halfOpenFlight = true
	}
	c.mu.Unlock()

	err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == circuitHalfOpen {
		c.halfOpenFlight = false
	}

	if err == nil {
		c.state = circuitClosed
		c.failures = 0
		return nil
	}

	if c.state == circuitHalfOpen {
		c.state = circuitOpen
		c.openedAt = now
		c.failures = 0
		return err
	}

	c.failures++
	if c.failures >= c.maxFails {
		c.state = circuitOpen
		c.openedAt = now
	}
	return err
}

// ReliableCustomerService wraps a CustomerService with reliability
// controls on its reads.
type ReliableCustomerService struct {
	base    CustomerService
	breaker *CircuitBreaker
	retry   RetryPolicy
}

// NewReliableCustomerService constructs a reliability-wrapped customer service.
func NewReliableCustomerService(base CustomerService, breaker *CircuitBreaker, retry RetryPolicy) *ReliableCustomerService {
	return &ReliableCustomerService{base: base, breaker: breaker, retry: retry}
}

func (c *ReliableCustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var customer Customer
	err := doReliably(ctx, c.retry, c.breaker, func() error {
		var err error
		customer, err = c.base.GetCustomer(ctx, id)
		return err
	})
	return customer, err
}

// ReliableSellerService wraps a SellerService: reads go through retry and
// breaker, the CreateSeller write passes straight through.
type ReliableSellerService struct {
	base    SellerService
	breaker *CircuitBreaker
	retry   RetryPolicy
}

// NewReliableSellerService constructs a reliability-wrapped seller service.
func NewReliableSellerService(base SellerService, breaker *CircuitBreaker, retry RetryPolicy) *ReliableSellerService {
	return &ReliableSellerService{base: base, breaker: breaker, retry: retry}
}

func (c *ReliableSellerService) GetSeller(ctx context.Context, id uuid.UUID) (Seller, error) {
	var seller Seller
	err := doReliably(ctx, c.retry, c.breaker, func() error {
		var err error
		seller, err = c.base.GetSeller(ctx, id)
		return err
	})
	return seller, err
}

func (c *ReliableSellerService) ValidateVisit(ctx context.Context, visitID, sellerID uuid.UUID) error {
	return doReliably(ctx, c.retry, c.breaker, func() error {
		return c.base.ValidateVisit(ctx, visitID, sellerID)
	})
}

func (c *ReliableSellerService) CreateSeller(ctx context.Context, input NewSellerInput) error {
	return c.base.CreateSeller(ctx, input)
}

func doReliably(ctx context.Context, retry RetryPolicy, breaker *CircuitBreaker, fn func() error) error {
	attempt := func() error {
		if breaker != nil {
			return breaker.Execute(fn)
		}
		return fn()
	}
	return retry.Do(ctx, attempt)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
