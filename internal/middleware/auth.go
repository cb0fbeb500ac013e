package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgerly/backend/internal/services"
)

type contextKey string

const userIDKey contextKey = "userID"

var errMissingSubject = errors.New("token carries no user id")

// Auth validates HS256 bearer tokens issued by the account service and puts
// the opaque user id on the request context. Tokens whose jti is listed under
// auth:revoked:<jti> in Redis are refused.
type Auth struct {
	secret []byte
	redis  *redis.Client
}

func NewAuth(secret string, redis *redis.Client) *Auth {
	return &Auth{secret: []byte(secret), redis: redis}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		userID, err := a.validateToken(r.Context(), parts[1])
		if err != nil {
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Auth) validateToken(ctx context.Context, tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	if jti, _ := claims["jti"].(string); jti != "" && a.redis != nil {
		revoked, err := a.redis.Exists(ctx, "auth:revoked:"+jti).Result()
		if err == nil && revoked > 0 {
			return "", jwt.ErrTokenInvalidId
		}
	}

	userID, ok := claims["user_id"]
	if !ok {
		userID, ok = claims["sub"]
	}
	if !ok || userID == nil {
		return "", errMissingSubject
	}

	var id string
	switch v := userID.(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		id = fmt.Sprint(v)
	}
	if id == "" {
		return "", errMissingSubject
	}
	return id, nil
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" on public routes.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
