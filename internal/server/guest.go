package server

import (
	"net/http"

	"image-drop/internal/presence"
)

type guestResp struct {
	Count int `json:"count"`
}

// guestHandler handles GET /guest, the pull side of the presence count.
func guestHandler(b *presence.Broadcaster) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, guestResp{Count: b.Snapshot()})
	})
}
