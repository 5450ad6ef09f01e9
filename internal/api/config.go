package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"headsup/pkg/config"
	"headsup/pkg/nav"
)

// SettingsStore persists the settings panel. config.UnifiedProvider
// satisfies it.
type SettingsStore interface {
	Settings(ctx context.Context) config.Settings
	SaveSettings(ctx context.Context, s config.Settings) error
	ResetSettings(ctx context.Context) error
}

// ConfigHandler handles the settings panel.
type ConfigHandler struct {
	store SettingsStore
	nav   Navigator
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(st SettingsStore, n Navigator) *ConfigHandler {
	return &ConfigHandler{store: st, nav: n}
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	case http.MethodDelete:
		h.HandleResetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current settings.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Settings(r.Context()))
}

// HandleSetConfig merges the request body into the current settings,
// persists them and applies them to the engine. Fields missing from the body
// keep their value.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	next := h.store.Settings(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := json.Unmarshal(body, &next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := h.store.SaveSettings(ctx, next); err != nil {
		if errors.Is(err, config.ErrInvalidSetting) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	h.apply(w, next)
}

// HandleResetConfig drops every persisted override and applies the YAML
// values again.
func (h *ConfigHandler) HandleResetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.store.ResetSettings(ctx); err != nil {
		slog.Error("Failed to reset settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}
	h.apply(w, h.store.Settings(ctx))
}

func (h *ConfigHandler) apply(w http.ResponseWriter, s config.Settings) {
	if h.nav != nil {
		err := h.nav.UpdateSettings(func(ns *nav.Settings) { *ns = ns.WithPanel(s) })
		if err != nil {
			// Saved, but tracking could not be restarted with the new interval.
			slog.Error("Failed to apply settings", "error", err)
			writeError(w, http.StatusInternalServerError, "settings saved but tracking restart failed")
			return
		}
	}
	slog.Info("Settings updated", "interval", s.Interval(), "zoom", s.MapZoom, "unit", s.SpeedUnit)
	writeJSON(w, http.StatusOK, s)
}
