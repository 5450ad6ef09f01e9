package api

import (
	"net/http"

	"headsup/pkg/geo"
	"headsup/pkg/nav"
)

// Navigator is the part of the navigation engine the API reads and drives.
// nav.Engine satisfies it.
type Navigator interface {
	State() nav.State
	Position() *geo.Point
	Settings() nav.Settings
	UpdateSettings(fn func(*nav.Settings)) error
}

// StateHandler serves the navigation snapshot.
type StateHandler struct {
	nav Navigator
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(n Navigator) *StateHandler {
	return &StateHandler{nav: n}
}

// StateResponse is nav.State plus the display unit.
type StateResponse struct {
	nav.State
	Speed     float64 `json:"speed"`
	SpeedUnit string  `json:"speed_unit"`
	Zoom      int     `json:"zoom"`
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := h.nav.State()
	s := h.nav.Settings()
	writeJSON(w, http.StatusOK, StateResponse{
		State:     st,
		Speed:     s.SpeedUnit.FromKmh(st.SpeedKmh),
		SpeedUnit: s.SpeedUnit.Label(),
		Zoom:      s.Zoom,
	})
}
