package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
	"github.com/noah-isme/articulacion-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// ActorResolver turns verified claims into an actor with its access scope.
type ActorResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims) (models.Actor, error)
}

// Actor resolves the caller's authorization scope once per request. It must run after JWT.
func Actor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		actor, err := resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// CurrentActor returns the actor stored by Actor.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
