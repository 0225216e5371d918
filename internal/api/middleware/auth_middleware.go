package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the key under which the authenticated user ID is stored.
const UserIDKey = "user_id"

// AuthMiddleware validates bearer tokens issued by the identity service.
// Linking sessions are always scoped to the authenticated user, so every
// session route sits behind RequireAuth.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates an authentication middleware that verifies
// HMAC-signed JWTs with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the user ID for downstream handlers.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			m.unauthorized(c, "MISSING_TOKEN", "Authentication token required")
			return
		}

		userID, err := m.validateToken(token)
		if err != nil {
			m.unauthorized(c, "INVALID_TOKEN", "Invalid authentication token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	})
}

func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}

	cookie, err := c.Cookie("access_token")
	if err != nil {
		return ""
	}
	return cookie
}

// validateToken parses the JWT and returns its subject claim.
func (m *AuthMiddleware) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

func (m *AuthMiddleware) unauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": map[string]interface{}{
			"type":    "AUTHENTICATION_ERROR",
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

// GetUserID extracts the authenticated user ID from Gin context. Returns
// an empty string when the request did not pass RequireAuth.
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
