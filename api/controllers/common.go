package controllers

import (
	"net/http"

	"github.com/angelmondragon/shirtforge-backend/api/middleware"
	"github.com/angelmondragon/shirtforge-backend/api/responses"
	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
)

// requireActor writes a 401 and reports false when the request carries no
// authenticated caller.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return auth.Actor{}, false
	}
	return actor, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
