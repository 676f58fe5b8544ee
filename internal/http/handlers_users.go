package http

import (
	"net/http"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpRegister, err)
		return
	}

	user, err := s.users.Register(r.Context(), creds)
	if err != nil {
		writeServiceError(w, r, applog.OpRegister, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, caller core.User) {
	users, err := s.users.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpLogin, err)
		return
	}

	res, err := s.users.Login(r.Context(), creds)
	if err != nil {
		writeServiceError(w, r, applog.OpLogin, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, Username: res.Username})
}
