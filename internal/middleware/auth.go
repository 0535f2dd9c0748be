package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"bmr/config"
	"bmr/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID       = "user_id"
	ctxEmail        = "email"
	ctxIsStaff      = "is_staff"
	ctxIsManagement = "is_management"
	ctxClaims       = "claims"
)

// AuthRequired validates the bearer JWT and sets user_id, email, is_staff and claims in context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxIsStaff, claims.IsStaff)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// GroupLookup answers group membership from the user store when the token
// does not carry it.
type GroupLookup interface {
	UserInGroup(ctx context.Context, userID uint, group string) (bool, error)
}

// ManagementRequired admits staff users and members of the management group
// (case-insensitive). Must run after AuthRequired.
func ManagementRequired(group string, lookup GroupLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsManagement(c, group, lookup) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}

// IsManagement resolves and caches the management capability of the caller.
func IsManagement(c *gin.Context, group string, lookup GroupLookup) bool {
	if v, ok := c.Get(ctxIsManagement); ok {
		return v.(bool)
	}
	ok := resolveManagement(c, group, lookup)
	c.Set(ctxIsManagement, ok)
	return ok
}

func resolveManagement(c *gin.Context, group string, lookup GroupLookup) bool {
	if GetIsStaff(c) {
		return true
	}
	if claims, ok := c.Get(ctxClaims); ok {
		for _, g := range claims.(*auth.Claims).Groups {
			if strings.EqualFold(g, group) {
				return true
			}
		}
	}
	userID := GetUserID(c)
	if lookup == nil || userID == 0 {
		return false
	}
	in, err := lookup.UserInGroup(c.Request.Context(), userID, group)
	if err != nil {
		slog.Error("management group lookup failed", "user_id", userID, "err", err)
		return false
	}
	return in
}

// GetUserID returns the authenticated user ID from context (must be used after AuthRequired).
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get(ctxUserID)
	if v == nil {
		return 0
	}
	return v.(uint)
}

func GetIsStaff(c *gin.Context) bool {
	v, _ := c.Get(ctxIsStaff)
	b, _ := v.(bool)
	return b
}
