package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

type cognitoAPI interface {
	SignUp(ctx context.Context, params *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	AdminDeleteUser(ctx context.Context, params *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
	AdminAddUserToGroup(ctx context.Context, params *cognitoidentityprovider.AdminAddUserToGroupInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminAddUserToGroupOutput, error)
}

// CognitoProvider implements Provider on top of AWS Cognito. Deletion and
// group assignment are admin operations scoped to a single user pool.
type CognitoProvider struct {
	api          cognitoAPI
	poolID       string
	clientID     string
	clientSecret string
	logger       *slog.Logger
}

func NewCognitoProvider(api cognitoAPI, poolID, clientID, clientSecret string, logger *slog.Logger) *CognitoProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CognitoProvider{
		api:          api,
		poolID:       poolID,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

func (p *CognitoProvider) CreateAccount(ctx context.Context, input NewAccountInput) (Account, error) {
	username := UsernameFor(input.Email)

	signUp := &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
		Password: aws.String(input.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(input.Email)},
			{Name: aws.String("name"), Value: aws.String(input.Name)},
			{Name: aws.String("custom:user_type"), Value: aws.String(input.UserType)},
		},
	}
	if p.clientSecret != "" {
		signUp.SecretHash = aws.String(p.secretHash(username))
	}

	out, err := p.api.SignUp(ctx, signUp)
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, username)
		}
		var weak *types.InvalidPasswordException
		if errors.As(err, &weak) {
			return Account{}, &WeakPasswordError{Detail: aws.ToString(weak.Message)}
		}
		return Account{}, fmt.Errorf("create account %s: %w", username, err)
	}

	account := Account{
		ID:       aws.ToString(out.UserSub),
		Username: username,
		Email:    input.Email,
	}
	p.logger.Info("identity account created", "username", username, "account_id", account.ID)
	return account, nil
}

func (p *CognitoProvider) DeleteAccount(ctx context.Context, username string) error {
	_, err := p.api.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", username, err)
	}
	p.logger.Info("identity account deleted", "username", username)
	return nil
}

func (p *CognitoProvider) AddToGroup(ctx context.Context, username, group string) error {
	_, err := p.api.AdminAddUserToGroup(ctx, &cognitoidentityprovider.AdminAddUserToGroupInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(username),
		GroupName:  aws.String(group),
	})
	if err != nil {
		return fmt.Errorf("add %s to group %s: %w", username, group, err)
	}
	return nil
}

// secretHash computes the Cognito SECRET_HASH for a username: an
// HMAC-SHA256 of username+clientID keyed with the app client secret.
func (p *CognitoProvider) secretHash(username string) string {
	mac := hmac.New(sha256.New, []byte(p.clientSecret))
	mac.Write([]byte(username + p.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
