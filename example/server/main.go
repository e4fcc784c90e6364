// The example server wires the authorization server core with the in-memory
// storage: one tenant, a poll mode and a push mode CIBA client, a password
// user and a simulated authentication device reachable over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"os"
	"time"

	gowebauthn "github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/authentication/device"
	"github.com/authcove/idp/pkg/authentication/email"
	"github.com/authcove/idp/pkg/authentication/fidouaf"
	"github.com/authcove/idp/pkg/authentication/password"
	"github.com/authcove/idp/pkg/authentication/sms"
	"github.com/authcove/idp/pkg/authentication/webauthn"
	"github.com/authcove/idp/pkg/ciba"
	"github.com/authcove/idp/pkg/crypto"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
	"github.com/authcove/idp/pkg/storage/memory"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("loading configuration failed", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	key, err := signingKey(cfg)
	if err != nil {
		return err
	}
	crypto, err := op.NewCrypto(key, uuid.NewString(), cfg.AESKey)
	if err != nil {
		return err
	}

	tenant := op.Tenant{ID: "local", Name: "Local", Domain: cfg.Domain}
	resolveTenant := func(r *http.Request) (op.Tenant, error) {
		return tenant, nil
	}

	serverConfigs := memory.NewServerConfigurationRepository()
	clientConfigs := memory.NewClientConfigurationRepository()
	users := memory.NewUserRepository()
	authRequests := memory.NewAuthorizationRequestRepository()
	codeGrants := memory.NewAuthorizationCodeGrantRepository()
	refreshGrants := memory.NewRefreshTokenGrantRepository()
	granted := memory.NewAuthorizationGrantedRepository()
	tokens := memory.NewOAuthTokenRepository()
	backchannelRequests := memory.NewBackchannelRequestRepository()
	cibaGrants := memory.NewCibaGrantRepository()
	transactions := memory.NewTransactionRepository()
	smsChallenges := memory.NewSMSChallengeRepository()
	emailChallenges := memory.NewEmailChallengeRepository()
	webauthnSessions := memory.NewWebAuthnSessionRepository()
	webauthnCredentials := memory.NewWebAuthnCredentialRepository()

	seed(cfg, tenant, serverConfigs, clientConfigs, users)

	tokenEndpoint := op.NewTokenEndpoint(logger)
	tokenEndpoint.ServerConfigs = serverConfigs
	tokenEndpoint.ClientConfigs = clientConfigs
	tokenEndpoint.AuthRequests = authRequests
	tokenEndpoint.CodeGrants = codeGrants
	tokenEndpoint.RefreshGrants = refreshGrants
	tokenEndpoint.Granted = granted
	tokenEndpoint.Tokens = tokens
	tokenEndpoint.Users = users
	tokenEndpoint.Crypto = crypto
	tokenEndpoint.ResolveTenant = resolveTenant
	ciba.NewTokenHandler(tokenEndpoint, cibaGrants, backchannelRequests)

	notifier := ciba.NewClientNotificationService(ciba.NewHTTPClientNotificationGateway(), logger)
	notifier.Requests = backchannelRequests
	notifier.ServerConfigs = serverConfigs
	notifier.ClientConfigs = clientConfigs
	notifier.Granted = granted
	notifier.Tokens = tokens
	notifier.RefreshGrants = refreshGrants
	notifier.Crypto = crypto

	requestHandler := ciba.NewRequestHandler(logger)
	requestHandler.ServerConfigs = serverConfigs
	requestHandler.ClientConfigs = clientConfigs
	requestHandler.Requests = backchannelRequests
	requestHandler.Grants = cibaGrants
	requestHandler.Users = users

	protocol := ciba.NewProtocol(
		requestHandler,
		&ciba.AuthorizeHandler{Grants: cibaGrants, Notifier: notifier},
		&ciba.DenyHandler{Grants: cibaGrants, Requests: backchannelRequests, Notifier: notifier},
		logger,
	)

	interactors := authentication.NewInteractors()
	interactors.Register(password.Type, &password.Interactor{})
	interactors.Register(sms.TypeChallenge, &sms.ChallengeInteractor{
		Challenges: smsChallenges,
		Gateway:    logSMSGateway{logger},
		Issuer:     tenant.Issuer(),
	})
	interactors.Register(sms.TypeVerification, &sms.VerificationInteractor{Challenges: smsChallenges})
	interactors.Register(email.TypeChallenge, &email.ChallengeInteractor{
		Challenges: emailChallenges,
		Sender:     logEmailSender{logger},
		Issuer:     tenant.Issuer(),
	})
	interactors.Register(email.TypeVerification, &email.VerificationInteractor{Challenges: emailChallenges})
	relyingParty, err := gowebauthn.New(&gowebauthn.Config{
		RPID:          cfg.Domain,
		RPDisplayName: tenant.Name,
		RPOrigins:     []string{"https://" + cfg.Domain},
	})
	if err != nil {
		return err
	}
	interactors.Register(webauthn.TypeChallenge, &webauthn.ChallengeInteractor{
		WebAuthn:    relyingParty,
		Credentials: webauthnCredentials,
		Sessions:    webauthnSessions,
	})
	interactors.Register(webauthn.TypeVerification, &webauthn.VerificationInteractor{
		WebAuthn:    relyingParty,
		Credentials: webauthnCredentials,
		Sessions:    webauthnSessions,
	})
	interactors.Register(fidouaf.TypeChallenge, &fidouaf.ChallengeInteractor{Gateway: logFIDOUAFGateway{logger}})
	interactors.Register(fidouaf.TypeVerification, &fidouaf.VerificationInteractor{Gateway: logFIDOUAFGateway{logger}})
	interactors.Register(device.TypeNotification, &device.NotificationInteractor{Gateway: logDeviceGateway{logger}})
	interactors.Register(device.TypeDeny, &device.DenyInteractor{})
	dispatch := authentication.NewDispatch(interactors, transactions, users, logger)

	entry := &entryService{
		dispatch:     dispatch,
		transactions: transactions,
		grants:       cibaGrants,
		protocol:     protocol,
		tenant:       tenant,
		logger:       logger,
	}
	protocol.OnIssued = entry.onIssued

	backchannel := ciba.NewBackchannelEndpoint(protocol, resolveTenant, logger)
	router := op.NewRouter(tokenEndpoint, backchannel, logger)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.HandleFunc("/device/v1/interactions", entry.handleInteraction)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("listening", "addr", server.Addr, "issuer", tenant.Issuer())
	return server.ListenAndServe()
}

func signingKey(cfg *Config) (*rsa.PrivateKey, error) {
	if cfg.SigningKey != "" {
		return crypto.BytesToPrivateKey([]byte(cfg.SigningKey))
	}
	return rsa.GenerateKey(rand.Reader, 2048)
}

func seed(cfg *Config, tenant op.Tenant, serverConfigs *memory.ServerConfigurationRepository, clientConfigs *memory.ClientConfigurationRepository, users *memory.UserRepository) {
	serverConfigs.Seed(tenant, &op.AuthorizationServerConfiguration{
		Issuer: tenant.Issuer(),
		SupportedGrantTypes: []oidc.GrantType{
			oidc.GrantTypeCode,
			oidc.GrantTypeRefreshToken,
			oidc.GrantTypeClientCredentials,
			oidc.GrantTypePassword,
			oidc.GrantTypeCIBA,
		},
		AccessTokenLifetime:  cfg.AccessTokenLifetime,
		RefreshTokenLifetime: cfg.RefreshTokenLifetime,
		IDTokenLifetime:      cfg.IDTokenLifetime,
		Backchannel: op.BackchannelAuthenticationConfig{
			Lifetime:     cfg.CIBARequestLifetime,
			PollInterval: cfg.CIBAPollInterval,
		},
	})
	clientConfigs.Seed(tenant, &op.ClientConfiguration{
		ClientID:     "web",
		ClientSecret: "secret",
		AuthMethod:   oidc.AuthMethodBasic,
		GrantTypes: []oidc.GrantType{
			oidc.GrantTypeCode,
			oidc.GrantTypeRefreshToken,
			oidc.GrantTypeCIBA,
		},
		RedirectURIs:                 []string{"http://localhost:9999/auth/callback"},
		Scopes:                       []string{"openid", "profile", "email", "offline_access"},
		Profile:                      oidc.ProfileOIDC,
		BackchannelTokenDeliveryMode: oidc.DeliveryModePoll,
	})
	clientConfigs.Seed(tenant, &op.ClientConfiguration{
		ClientID:     "push",
		ClientSecret: "push-secret",
		AuthMethod:   oidc.AuthMethodPost,
		GrantTypes:   []oidc.GrantType{oidc.GrantTypeCIBA},
		Scopes:       []string{"openid", "profile"},
		Profile:      oidc.ProfileOIDC,

		BackchannelTokenDeliveryMode:          oidc.DeliveryModePush,
		BackchannelClientNotificationEndpoint: "http://localhost:9999/ciba/notify",
	})

	hashed, _ := bcrypt.GenerateFromPassword([]byte("verysecure"), bcrypt.DefaultCost)
	users.Seed(tenant, &op.User{
		ID:             uuid.NewString(),
		Sub:            "id1",
		Username:       "test-user",
		Name:           "Test User",
		Email:          "test-user@authcove.example",
		PhoneNumber:    "+12025550123",
		HashedPassword: string(hashed),
		Claims:         map[string]any{"name": "Test User", "email": "test-user@authcove.example"},
	})
}

// logSMSGateway stands in for a real SMS provider.
type logSMSGateway struct {
	logger *slog.Logger
}

func (g logSMSGateway) Send(ctx context.Context, phoneNumber, message string) error {
	g.logger.InfoContext(ctx, "sms", "to", phoneNumber, "message", message)
	return nil
}

// logEmailSender stands in for an SMTP relay or mail provider.
type logEmailSender struct {
	logger *slog.Logger
}

func (s logEmailSender) Send(ctx context.Context, address, subject, body string) error {
	s.logger.InfoContext(ctx, "email", "to", address, "subject", subject, "body", body)
	return nil
}

// logFIDOUAFGateway stands in for an external FIDO UAF server. It hands out a
// static request message and accepts every response, which is only good enough
// for the simulated device in this example.
type logFIDOUAFGateway struct {
	logger *slog.Logger
}

func (g logFIDOUAFGateway) Challenge(ctx context.Context, tenant op.Tenant, userID string) (map[string]any, error) {
	g.logger.InfoContext(ctx, "fido uaf challenge", "user_id", userID)
	return map[string]any{"uafRequest": "simulated"}, nil
}

func (g logFIDOUAFGateway) Verify(ctx context.Context, tenant op.Tenant, userID string, response map[string]any) error {
	g.logger.InfoContext(ctx, "fido uaf verify", "user_id", userID, "response", response)
	return nil
}

// logDeviceGateway stands in for a push notification provider.
type logDeviceGateway struct {
	logger *slog.Logger
}

func (g logDeviceGateway) Notify(ctx context.Context, tenant op.Tenant, user op.User, payload map[string]any) error {
	g.logger.InfoContext(ctx, "device notification", "user", user.Username, "payload", payload)
	return nil
}
