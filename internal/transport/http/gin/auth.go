package httpgin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

const principalKey = "principal"

// Claims is the access token issued by the identity service.
type Claims struct {
	Sub   string   `json:"sub"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(raw string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Sub == "" {
		return nil, errors.New("invalid token")
	}

	return c, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller as a domain.Principal.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			return
		}

		claims, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(principalKey, domain.Principal{UserID: claims.Sub, Roles: claims.Roles})
		c.Next()
	}
}

// RequireRole lets through callers holding any of roles. Admins always pass.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		if p.IsAdmin() {
			c.Next()
			return
		}
		for _, r := range roles {
			if p.HasRole(r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	}
}

func principal(c *gin.Context) domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}
	}
	p, _ := v.(domain.Principal)
	return p
}
