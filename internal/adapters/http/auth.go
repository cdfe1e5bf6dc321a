package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/domain"
)

const userKey = "identity"

type identityClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// IdentityMiddleware resolves the caller identity from a signed token in
// the Authorization header, the "token" query param, or the "token"
// cookie. A missing or invalid token leaves the session anonymous: the
// router decides per event whether an identity is required.
func IdentityMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.Next()
			return
		}
		claims := &identityClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			log.Debug().Str("module", "adapters.http").Err(err).Msg("token rejected, continuing anonymous")
			c.Next()
			return
		}
		user, err := domain.NewUser(domain.UserID(claims.UserID), claims.Username)
		if err != nil {
			log.Debug().Str("module", "adapters.http").Err(err).Msg("bad identity claims")
			c.Next()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if q := c.Query("token"); q != "" {
		return q
	}
	if ck, err := c.Cookie("token"); err == nil {
		return ck
	}
	return ""
}

// CurrentUser returns the bound identity, nil for anonymous callers.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		return v.(*domain.User)
	}
	return nil
}

// RequireAuth guards endpoints that have no anonymous mode.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthenticationRequired.Error()})
			return
		}
		c.Next()
	}
}
