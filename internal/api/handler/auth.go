package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"civicshield/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	actorKey = "actor"
	issuer   = "civicshield-backend"
)

var errNoToken = errors.New("authorization token missing")

// Claims are the actor claims carried by a bearer token.
type Claims struct {
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
	AnonID     string `json:"anon_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 actor tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator for secret, which must not be
// empty.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is empty")
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// IssueToken signs a token for actor valid for ttl.
func (a *Authenticator) IssueToken(actor models.Actor, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role:       string(actor.Role),
		Name:       actor.Name,
		Department: actor.Department,
		AnonID:     actor.AnonID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies tokenString and returns the actor it names.
func (a *Authenticator) ParseToken(tokenString string) (models.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Actor{}, err
	}
	if claims.Subject == "" {
		return models.Actor{}, errors.New("token has no subject")
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{
		ID:         claims.Subject,
		Name:       claims.Name,
		Role:       role,
		Department: claims.Department,
		AnonID:     claims.AnonID,
	}, nil
}

// bearer extracts the token from the Authorization header, or from the
// token query parameter for WebSocket upgrades.
func bearer(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, nil
		}
		return "", errNoToken
	}
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", errNoToken
	}
	return authHeader[7:], nil
}

// RequireActor rejects requests without a valid token and stores the actor
// on the context.
func (a *Authenticator) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		actor, err := a.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token or expired"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		panic(fmt.Sprintf("%s: route is missing RequireActor", c.FullPath()))
	}
	return v.(models.Actor)
}
