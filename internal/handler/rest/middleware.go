package rest

import (
	"context"
	"net/http"
	"strconv"

	"recharge-service/internal/domain"
	"recharge-service/internal/usecase"
	"recharge-service/pkg/xerrors"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorMiddleware resolves the caller identity supplied by the upstream
// auth gateway via X-Actor-ID into a typed actor and rejects suspended
// accounts before any handler runs.
func ActorMiddleware(agents *usecase.AgentUsecase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-Actor-ID")
			if raw == "" {
				writeError(w, xerrors.ErrUnauthorized)
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, xerrors.ErrUnauthorized)
				return
			}

			actor, err := agents.ResolveActor(r.Context(), id)
			if err != nil {
				writeError(w, xerrors.ErrUnauthorized)
				return
			}
			if !actor.IsActive {
				writeError(w, xerrors.ErrAgentSuspended)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFrom(r *http.Request) (*domain.Actor, bool) {
	actor, ok := r.Context().Value(actorKey).(*domain.Actor)
	return actor, ok
}

// RequireAdmin gates admin routes. Only super admins bypass the capability
// check; every other admin must carry a capability set that grants the
// route, and an admin without one is denied outright.
func RequireAdmin(check func(*domain.AdminCapabilities) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r)
			if !ok {
				writeError(w, xerrors.ErrUnauthorized)
				return
			}
			if !actor.IsAdmin() {
				writeError(w, xerrors.ErrForbidden)
				return
			}
			if !actor.IsSuperAdmin {
				if actor.Capabilities == nil {
					writeError(w, xerrors.ErrForbidden)
					return
				}
				if check != nil && !check(actor.Capabilities) {
					writeError(w, xerrors.ErrForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
