package app

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const adminKey = "admin"

const (
	sessionSubject = "barber"
	stateSubject   = "calendar-oauth"
	stateTTL       = 10 * time.Minute
)

var errInvalidState = errors.New("invalid oauth state")

// Authenticator accepts HMAC-signed JWTs or static bearer tokens for the barber.
type Authenticator struct {
	Secret       string
	StaticTokens []string
}

func (au Authenticator) valid(tokenStr string) bool {
	// JWT path
	if au.Secret != "" {
		_, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(au.Secret), nil
		}, jwt.WithLeeway(5*time.Second), jwt.WithSubject(sessionSubject))
		if err == nil {
			return true
		}
	}
	// static tokens
	for _, t := range au.StaticTokens {
		if t != "" && subtle.ConstantTimeCompare([]byte(tokenStr), []byte(t)) == 1 {
			return true
		}
	}
	return false
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Required rejects requests without a valid barber token.
func (au Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		if !au.valid(tokenStr) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(adminKey, true)
		c.Next()
	}
}

// Optional marks the request as the barber's when a valid token is present and never rejects.
func (au Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok && au.valid(tokenStr) {
			c.Set(adminKey, true)
		}
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}

// IssueToken signs a barber session token.
func IssueToken(secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type loginReq struct {
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (a *App) LoginHandler(c *gin.Context) {
	if a.AdminPasswordHash == "" || a.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login not configured"})
		return
	}
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.AdminPasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	const ttl = 12 * time.Hour
	now := a.Now()
	token, err := IssueToken(a.JWTSecret, now, ttl)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": now.Add(ttl),
	})
}

// issueOAuthState signs the state parameter of the calendar consent flow. It carries its own
// subject so it is never accepted as a session token.
func issueOAuthState(secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   stateSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func checkOAuthState(secret, state string, now time.Time) error {
	if secret == "" || state == "" {
		return errInvalidState
	}
	_, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(stateSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidState, err)
	}
	return nil
}
