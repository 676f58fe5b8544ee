package http

import (
	"context"
	"errors"
	"net/http"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

type userContextKey struct{}

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

func userFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(core.User)
	return u, ok
}

// authedHandler is a handler that runs with the authenticated caller.
type authedHandler func(w http.ResponseWriter, r *http.Request, user core.User)

// requireUser resolves the bearer token to a user or answers 401.
func (s *Server) requireUser(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
			return
		}

		user, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthenticated) {
				writeServiceError(w, r, applog.OpRead, err)
				return
			}
			writeError(w, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
			return
		}

		ctx := withUser(r.Context(), user)
		ctx = applog.WithContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, user.ID))
		next(w, r.WithContext(ctx), user)
	})
}
