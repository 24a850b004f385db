package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TwigBush/reqtrace/internal/httpx"
)

type User struct {
	ID     int    `json:"id"`
	Handle string `json:"handle"`
	Token  string `json:"token"`
}

// GetUser returns a made-up user for any numeric id.
func GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, User{
		ID:     id,
		Handle: words[id%len(words)],
		Token:  uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.Itoa(id))).String(),
	})
}
