package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("unauthorized")

const hostIDKey = "hostID"

// HostAuth identifies hosts from HS256 bearer tokens whose subject is the host id.
// Tokens are issued elsewhere. With an empty secret it trusts the X-Host-ID
// header or hostId query parameter instead, which is meant for local runs.
type HostAuth struct {
	secret []byte
}

func NewHostAuth(secret string) *HostAuth {
	return &HostAuth{secret: []byte(secret)}
}

func (a *HostAuth) Enabled() bool {
	return len(a.secret) > 0
}

// HostID returns the authenticated host of r.
func (a *HostAuth) HostID(r *http.Request) (string, error) {
	if !a.Enabled() {
		id := r.Header.Get("X-Host-ID")
		if id == "" {
			id = r.URL.Query().Get("hostId")
		}
		if id == "" {
			return "", errUnauthorized
		}
		return id, nil
	}

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		// browsers cannot set headers on a websocket handshake
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return "", errUnauthorized
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: token has no subject", errUnauthorized)
	}
	return subject, nil
}

// RequireHost rejects requests without a host identity and stores it on the gin context.
func (a *HostAuth) RequireHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		hostID, err := a.HostID(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorPayload{Message: err.Error()})
			return
		}
		c.Set(hostIDKey, hostID)
		c.Next()
	}
}
