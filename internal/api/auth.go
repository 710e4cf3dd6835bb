package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/logging"
)

// Claims is the payload of an access token issued by the user service
type Claims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the claims AuthMiddleware stored in ctx
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// AuthMiddleware requires a valid HS256 bearer token signed with secret
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Debug("Authentication failed: no authorization header")
				respondError(w, r, apperrors.NewUnauthorizedError(msgTokenRequired))
				return
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug("Authentication failed: invalid authorization header format")
				respondError(w, r, apperrors.NewUnauthorizedError(msgTokenInvalid))
				return
			}

			claims, err := validateJWT(parts[1], []byte(secret))
			if err != nil {
				logger.WithError(err).Debug("Authentication failed: token rejected")
				respondError(w, r, apperrors.NewUnauthorizedError(msgTokenInvalid))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logging.WithLogger(ctx, logger.WithField("auth_user_id", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateJWT parses and verifies an HMAC-signed token
func validateJWT(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// resolveUserID picks the user a query runs for. The body may name the user;
// it must then match the token. An empty body value falls back to the token.
func resolveUserID(ctx context.Context, requested string) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		if requested == "" {
			return "", apperrors.NewValidationError("userID", "is required")
		}
		return requested, nil
	}

	if requested == "" {
		return claims.UserID, nil
	}
	if requested != claims.UserID {
		return "", apperrors.NewForbiddenError(msgUserIDMismatch)
	}
	return requested, nil
}
