package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"receipt2ledger/models"
)

const tokenTTL = 24 * time.Hour

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UserID   uint   `json:"uid"`
	jwt.RegisteredClaims
}

func (s *server) issueToken(u *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: u.Username,
		Role:     u.Role.Name,
		UserID:   u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return token.SignedString(s.jwtSecret)
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		var cl claims
		token, err := jwt.ParseWithClaims(tokenString, &cl, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid || cl.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("username", cl.Username)
		c.Set("role", cl.Role)
		c.Set("uid", cl.UserID)
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == models.RoleAdministrator
}
