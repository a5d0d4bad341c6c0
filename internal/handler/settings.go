package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/auth"
)

// SettingStore reads and writes the named search switches (config.Settings).
type SettingStore interface {
	Get(name string) (bool, error)
	Set(ctx context.Context, name string, value bool) error
}

// AdminChecker decides who may change settings (permission.RosterPolicy).
type AdminChecker interface {
	IsAdmin(viewerID int64) bool
}

// SettingsHandler exposes the runtime search switches to account admins.
type SettingsHandler struct {
	settings SettingStore
	admins   AdminChecker
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings SettingStore, admins AdminChecker, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, admins: admins, logger: logger}
}

// SettingResponse is the body of both settings endpoints.
type SettingResponse struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type settingRequest struct {
	Value *bool `json:"value"`
}

// HandleGet returns one switch.
//
// HTTP: GET /api/v1/settings/{name}
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	name := chi.URLParam(r, "name")
	v, err := h.settings.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Name: name, Value: v})
}

// HandlePut changes one switch. Takes effect for searches that start after
// the response; searches already running keep their snapshot.
//
// HTTP: PUT /api/v1/settings/{name}
// REQUEST BODY: {"value": true}
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	name := chi.URLParam(r, "name")

	var req settingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Value == nil {
		writeError(w, apperror.ValidationFailed("value", `body must be {"value": true|false}`))
		return
	}

	if err := h.settings.Set(r.Context(), name, *req.Value); err != nil {
		writeError(w, err)
		return
	}
	viewerID, _ := auth.ViewerIDFromContext(r.Context())
	h.logger.Info("setting updated via API",
		slog.String("name", name),
		slog.Bool("value", *req.Value),
		slog.Int64("viewer_id", viewerID),
	)
	writeJSON(w, http.StatusOK, SettingResponse{Name: name, Value: *req.Value})
}

func (h *SettingsHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	viewerID, ok := auth.ViewerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return false
	}
	if !h.admins.IsAdmin(viewerID) {
		writeError(w, apperror.Forbidden("only account admins may manage settings"))
		return false
	}
	return true
}
