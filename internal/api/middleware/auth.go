// auth.go — JWT middleware для API обслуживания senadocs.
// Токены подписываются общим секретом (HS256, SD_JWT_SECRET) и выпускаются
// командой senadocsctl token. Доступ к API обслуживания даёт роль "maintenance".
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/senadocs/internal/api/errors"
)

// RoleMaintenance — роль, разрешающая вызов API обслуживания.
const RoleMaintenance = "maintenance"

// defaultLeeway — допустимое отклонение часов при проверке exp/nbf/iat.
const defaultLeeway = 30 * time.Second

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — claims токена в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// Claims — claims токена обслуживания.
type Claims struct {
	jwt.RegisteredClaims
	// Role — роль субъекта.
	Role string `json:"role"`
}

// HasRole проверяет, есть ли у субъекта указанная роль.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role
}

// JWTAuth — middleware для проверки Bearer-токенов API обслуживания.
type JWTAuth struct {
	secret []byte
	issuer string
	leeway time.Duration
	logger *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// secret — общий секрет HS256, issuer — ожидаемый iss (пусто — не проверяется).
func NewJWTAuth(secret, issuer string, logger *slog.Logger) (*JWTAuth, error) {
	if secret == "" {
		return nil, errors.New("не задан секрет JWT")
	}
	return &JWTAuth{
		secret: []byte(secret),
		issuer: issuer,
		leeway: defaultLeeway,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, проверяет подпись (HS256), срок действия и issuer,
// требует роль role и помещает claims в контекст.
func (j *JWTAuth) Middleware(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := j.Parse(tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !claims.HasRole(role) {
				j.logger.Info("Недостаточно прав",
					slog.String("subject", claims.Subject),
					slog.String("role", claims.Role),
					slog.String("required", role),
				)
				apierrors.Forbidden(w, fmt.Sprintf("Требуется роль %s", role))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Parse проверяет токен и возвращает его claims.
func (j *JWTAuth) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("невалидный токен")
	}
	if claims.Subject == "" {
		return nil, errors.New("отсутствует sub в токене")
	}
	return claims, nil
}

// IssueToken выпускает токен HS256 для subject с ролью role и сроком ttl.
func IssueToken(secret, issuer, subject, role string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("не задан секрет JWT")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// ClaimsFromContext извлекает Claims из контекста запроса.
// Возвращает nil, если запрос не прошёл через JWTAuth.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ContextKeyClaims).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
