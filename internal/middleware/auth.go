package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"civicbudget/internal/config"
	apperrors "civicbudget/internal/errors"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID     = "userID"
	ContextPrivileged = "privileged"
)

const tokenIssuer = "civicbudget-api"

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT. Identity is issued by an external
// provider; the API only needs the user ID and whether the caller may review proposals.
type JWTClaims struct {
	UserID     string `json:"user_id"`
	Privileged bool   `json:"privileged"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token for userID.
func GenerateAccessToken(userID string, privileged bool) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:     userID,
		Privileged: privileged,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Get().JWTExpirationDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// ParseAccessToken validates a token string and returns its claims.
func ParseAccessToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}

// AuthMiddleware verifies the bearer token and sets the user in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := ParseAccessToken(parts[1])
		if err != nil {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextPrivileged, claims.Privileged)
		c.Next()
	}
}

// RequirePrivileged rejects callers whose token lacks the privileged flag.
// It must run after AuthMiddleware.
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextPrivileged) {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrForbidden, "Reviewer privileges required"))
			return
		}
		c.Next()
	}
}
