package httpx

import (
	"net/http"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/ws"
)

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	teamID := req.URL.Query().Get("team_id")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "team_id query parameter required")
		return
	}
	if _, err := r.team.Authorize(req.Context(), teamID, callerID, domain.RoleViewer); err != nil {
		writeServiceError(w, err)
		return
	}
	limit, offset := parseListWindow(req)
	events, err := r.activity.List(req.Context(), teamID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(events))
	for _, e := range events {
		views = append(views, eventView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	teamID := req.URL.Query().Get("team_id")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "team_id query parameter required")
		return
	}
	if _, err := r.team.Authorize(req.Context(), teamID, callerID, domain.RoleViewer); err != nil {
		writeServiceError(w, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.activity.Hub().Register(teamID, client)
	go func() {
		defer func() {
			r.activity.Hub().Unregister(teamID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
