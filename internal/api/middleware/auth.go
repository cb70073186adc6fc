// auth.go — JWT middleware аутентификации ExaDocs.
// Проверяет подпись Bearer-токена через JWKS провайдера удостоверений,
// строит субъекта RBAC из claims и провизионирует пользователя.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/jorcase/exadocs/internal/api/errors"
	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	contextKeyActor    contextKey = "rbac_actor"
	contextKeyIdentity contextKey = "identity"
)

// Identity — сведения о пользователе из токена, не влияющие на права.
type Identity struct {
	Name  string
	Email string
}

// UserProvisioner создаёт или обновляет пользователя по данным токена.
// Реализуется service.UserService.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, actor rbac.Actor, name, email string) (*model.User, error)
}

// tokenClaims — raw claims токена.
type tokenClaims struct {
	jwt.RegisteredClaims
	Name              string       `json:"name,omitempty"`
	PreferredUsername string       `json:"preferred_username,omitempty"`
	Email             string       `json:"email,omitempty"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	// Roles — роли верхнего уровня (маппер клиента провайдера)
	Roles []string `json:"roles,omitempty"`
	// Permissions — точечные права (view_perfiles, edit_perfiles, ...)
	Permissions []string `json:"permissions,omitempty"`
}

// realmAccess — вложенная структура realm_access.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// displayName возвращает отображаемое имя: name, затем preferred_username.
func (c *tokenClaims) displayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PreferredUsername
}

// roles объединяет роли realm_access и верхнего уровня.
// Неизвестные строки отбрасываются в rbac.NewActor.
func (c *tokenClaims) roles() []string {
	var roles []string
	if c.RealmAccess != nil {
		roles = append(roles, c.RealmAccess.Roles...)
	}
	return append(roles, c.Roles...)
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	provisioner UserProvisioner
	issuer      string
	jwtLeeway   time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS провайдера удостоверений.
// jwksURL — URL к JWKS endpoint.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (пустой — не проверяется).
// provisioner — провизионирование пользователя (может быть nil).
// jwksClientTimeout — таймаут HTTP-клиента JWKS (EXA_JWKS_CLIENT_TIMEOUT).
// jwksRefreshInterval — интервал обновления JWKS-ключей (EXA_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (EXA_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	provisioner UserProvisioner,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient, err := jwksHTTPClient(caCertPath, jwksClientTimeout)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
	}
	if caCertPath != "" {
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, provisioner, jwtLeeway, logger), nil
}

// jwksHTTPClient создаёт HTTP-клиент JWKS; при caCertPath добавляет CA в пул доверия.
func jwksHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	if caCertPath == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в %s нет PEM-сертификатов", caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	provisioner UserProvisioner,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:        kf,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		provisioner: provisioner,
		issuer:      issuer,
		jwtLeeway:   jwtLeeway,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), строит rbac.Actor,
// провизионирует пользователя и помещает субъекта в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := bearerToken(r)
			if msg != "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			raw := &tokenClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := raw.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			actor := rbac.NewActor(subject, raw.roles(), raw.Permissions)
			identity := Identity{Name: raw.displayName(), Email: raw.Email}

			if j.provisioner != nil {
				if _, err := j.provisioner.EnsureUser(r.Context(), actor, identity.Name, identity.Email); err != nil {
					j.logger.Error("Ошибка провизионирования пользователя",
						slog.String("user_id", subject),
						slog.String("error", err.Error()),
					)
					apierrors.InternalError(w, "Ошибка провизионирования пользователя")
					return
				}
			}

			ctx := context.WithValue(r.Context(), contextKeyActor, actor)
			ctx = context.WithValue(ctx, contextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// Второе значение — сообщение об ошибке (пустое при успехе).
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Отсутствует заголовок Authorization"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Неверный формат Authorization: ожидается Bearer <token>"
	}
	if strings.TrimSpace(parts[1]) == "" {
		return "", "Пустой Bearer token"
	}
	return strings.TrimSpace(parts[1]), ""
}

// --- Context helpers ---

// ActorFromContext извлекает субъекта RBAC из контекста запроса.
// Без аутентификации возвращает пустого субъекта (IsAuthenticated() == false).
func ActorFromContext(ctx context.Context) rbac.Actor {
	actor, _ := ctx.Value(contextKeyActor).(rbac.Actor)
	return actor
}

// IdentityFromContext извлекает имя и e-mail пользователя из контекста.
func IdentityFromContext(ctx context.Context) Identity {
	identity, _ := ctx.Value(contextKeyIdentity).(Identity)
	return identity
}

// WithActor помещает субъекта в контекст. Используется в тестах обработчиков.
func WithActor(ctx context.Context, actor rbac.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// --- ReadinessChecker для JWKS ---

// JWKSReadinessChecker — проверка доступности JWKS провайдера удостоверений.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*JWKSReadinessChecker, error) {
	client, err := jwksHTTPClient(caCertPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
	}
	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
