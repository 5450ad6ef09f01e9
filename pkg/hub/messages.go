package hub

import "headsup/pkg/geo"

type typed struct {
	Type string `json:"type"`
}

// inbound is any message a browser sends.
type inbound struct {
	Type      string   `json:"type"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp int64    `json:"timestamp"` // ms since epoch
	Code      int      `json:"code"`
	Message   string   `json:"message"`
}

type viewMessage struct {
	Type                 string      `json:"type"`
	Center               geo.Point   `json:"center"`
	Zoom                 int         `json:"zoom"`
	Animate              bool        `json:"animate"`
	MapTransitionMs      int64       `json:"map_transition_ms"`
	Rotation             *float64    `json:"rotation"`
	RotationTransitionMs int64       `json:"rotation_transition_ms"`
	Trail                []geo.Point `json:"trail"`
	TrailVisible         bool        `json:"trail_visible"`
	Speed                float64     `json:"speed"`
	SpeedUnit            string      `json:"speed_unit"`
	SpeedLabel           string      `json:"speed_label"`
	Heading              float64     `json:"heading"`
	Simulated            bool        `json:"simulated"`
}

type statusMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type streetMessage struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}
