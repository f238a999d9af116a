package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/permission"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const IdentityKey = "identity"

// Authenticator resolves a bearer token to the caller's identity.
// service.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Identity, error)
}

// JWTAuth validates the Bearer token on every protected route and stores the
// resolved identity on the context.
func JWTAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.FromError(apierror.ErrUnauthenticated))
			return
		}

		ident, err := auth.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if apierror.KindOf(err) == apierror.KindInternal {
				log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("authenticate")
			}
			c.AbortWithStatusJSON(apierror.HTTPStatus(apierror.KindOf(err)), apierror.FromError(err))
			return
		}

		c.Set(IdentityKey, *ident)
		c.Next()
	}
}

// RequirePermission rejects requests whose role may not perform action.
// Must run after JWTAuth.
func RequirePermission(action permission.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := c.Get(IdentityKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.FromError(apierror.ErrUnauthenticated))
			return
		}
		if !permission.Allowed(ident.(model.Identity).Role, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.FromError(apierror.ErrForbidden))
			return
		}
		c.Next()
	}
}

// GetIdentity retrieves the authenticated caller from the Gin context.
func GetIdentity(c *gin.Context) model.Identity {
	ident, _ := c.MustGet(IdentityKey).(model.Identity)
	return ident
}
