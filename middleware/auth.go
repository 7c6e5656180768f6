package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bom-analytics-helper/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CapabilityManageShop is the shop-manager capability required by every admin action.
const CapabilityManageShop = "manage_woocommerce"

// TokenCookie is the cookie checked when no Authorization header is sent.
const TokenCookie = "bom_analytics_token"

// PermissionDeniedMessage is returned for every failed capability check.
const PermissionDeniedMessage = "Permission denied."

type Claims struct {
	UserID       uint64   `json:"user_id"`
	Email        string   `json:"email"`
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// Can reports whether the claims grant capability.
func (c *Claims) Can(capability string) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// GenerateToken signs an HS256 token for userID with the given capabilities.
func GenerateToken(secret string, userID uint64, email string, capabilities []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID:       userID,
		Email:        email,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    config.App.ServiceName,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if tokenString := strings.TrimPrefix(authHeader, "Bearer "); tokenString != authHeader {
			return strings.TrimSpace(tokenString)
		}
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// Deny aborts with the shared permission-denied payload.
func Deny(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"data":    gin.H{"message": message},
	})
}

// AuthMiddleware validates the JWT from the Authorization header or the
// session cookie and stores its claims on the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			Deny(c, http.StatusForbidden, PermissionDeniedMessage)
			return
		}

		claims, err := ParseToken(config.App.JWTSecret, tokenString)
		if err != nil {
			Deny(c, http.StatusForbidden, PermissionDeniedMessage)
			return
		}

		c.Set("claims", claims)
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)

		c.Next()
	}
}

// RequireCapability checks the authenticated user holds capability.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ClaimsFrom(c).Can(capability) {
			Deny(c, http.StatusForbidden, PermissionDeniedMessage)
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// CurrentUserID is 0 for anonymous requests.
func CurrentUserID(c *gin.Context) uint64 {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return 0
}
