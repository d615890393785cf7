// Package signup runs the registration sagas: an identity-provider
// account plus a domain record, created atomically via compensation.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"medisupply/internal/clients"
	"medisupply/internal/identity"
	"medisupply/internal/saga"
)

// ErrRegistrationFailed is returned to callers when a signup saga fails
// after the identity account was created. The underlying cause is logged
// but not exposed.
var ErrRegistrationFailed = errors.New("failed to complete user registration")

// SellerGroup is the authorization group seller accounts are added to.
const SellerGroup = "seller_users"

// ClientInput carries the fields for a client signup.
type ClientInput struct {
	Email           string
	Password        string
	Name            string
	Phone           string
	InstitutionName string
	InstitutionType string
	TaxID           string
	Address         string
	City            string
	Country         string
	Representative  string
}

// SellerInput carries the fields for seller provisioning.
type SellerInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Zone     string
}

// Service runs the signup sagas.
type Service struct {
	provider identity.Provider
	clients  clients.ClientService
	sellers  clients.SellerService
	executor *saga.Executor
	logger   *slog.Logger
}

func NewService(provider identity.Provider, clientSvc clients.ClientService, sellerSvc clients.SellerService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		clients:  clientSvc,
		sellers:  sellerSvc,
		executor: saga.NewExecutor(logger),
		logger:   logger,
	}
}

// SignupClient creates an identity account and a client record. If the
// record cannot be created, the account is deleted again and the caller
// gets ErrRegistrationFailed. A failure of the very first step (for
// example a duplicate email) is returned as-is so callers can
// distinguish it.
func (s *Service) SignupClient(ctx context.Context, input ClientInput) (identity.Account, error) {
	var account identity.Account

	steps := []saga.Step{
		{
			Name: "create-account",
			Forward: func(ctx context.Context) error {
				created, err := s.provider.CreateAccount(ctx, identity.NewAccountInput{
					Email:    input.Email,
					Password: input.Password,
					Name:     input.Name,
					UserType: "client",
				})
				if err != nil {
					return err
				}
				account = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.provider.DeleteAccount(ctx, account.Username)
			},
		},
		{
			Name: "create-client-record",
			Forward: func(ctx context.Context) error {
				return s.clients.CreateClient(ctx, clients.NewClientInput{
					CognitoUserID:   account.ID,
					Email:           input.Email,
					Phone:           input.Phone,
					InstitutionName: input.InstitutionName,
					InstitutionType: input.InstitutionType,
					TaxID:           input.TaxID,
					Address:         input.Address,
					City:            input.City,
					Country:         input.Country,
					Representative:  input.Representative,
				})
			},
		},
	}

	return s.run(ctx, "client signup", steps, &account)
}

// ProvisionSeller creates an identity account, adds it to the seller
// group, and creates the seller record. Any failure after account
// creation rolls the account back.
func (s *Service) ProvisionSeller(ctx context.Context, input SellerInput) (identity.Account, error) {
	var account identity.Account

	steps := []saga.Step{
		{
			Name: "create-account",
			Forward: func(ctx context.Context) error {
				created, err := s.provider.CreateAccount(ctx, identity.NewAccountInput{
					Email:    input.Email,
					Password: input.Password,
					Name:     input.Name,
					UserType: "seller",
				})
				if err != nil {
					return err
				}
				account = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.provider.DeleteAccount(ctx, account.Username)
			},
		},
		{
			// Deleting the account also removes its group membership,
			// so this step needs no compensation of its own.
			Name: "add-to-seller-group",
			Forward: func(ctx context.Context) error {
				return s.provider.AddToGroup(ctx, account.Username, SellerGroup)
			},
		},
		{
			Name: "create-seller-record",
			Forward: func(ctx context.Context) error {
				return s.sellers.CreateSeller(ctx, clients.NewSellerInput{
					CognitoUserID: account.ID,
					Email:         input.Email,
					Name:          input.Name,
					Phone:         input.Phone,
					Zone:          input.Zone,
				})
			},
		},
	}

	return s.run(ctx, "seller provisioning", steps, &account)
}

func (s *Service) run(ctx context.Context, name string, steps []saga.Step, account *identity.Account) (identity.Account, error) {
	result := s.executor.Execute(ctx, steps)
	switch result.Status {
	case saga.StatusSucceeded:
		s.logger.Info(name+" completed", "account_id", account.ID, "username", account.Username)
		return *account, nil
	case saga.StatusFailedDirty:
		// The account exists but could not be deleted; the executor has
		// already logged the manual-intervention warning.
		s.logger.Error(name+" left orphaned account",
			"username", account.Username, "account_id", account.ID, "cause", result.Err())
	}

	if len(result.CompletedSteps) == 0 {
		// Nothing to hide: the account was never created.
		return identity.Account{}, result.Err()
	}
	return identity.Account{}, fmt.Errorf("%w: %v", ErrRegistrationFailed, result.Err())
}
