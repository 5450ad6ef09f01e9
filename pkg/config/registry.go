package config

// Persistent state keys (Registry). These back the settings panel and
// override the YAML values when present.
const (
	KeyGPSInterval = "gps_interval"
	KeyMapZoom     = "map_zoom"
	KeyShowSpeed   = "show_speed"
	KeyShowStreet  = "show_street"
	KeyShowCompass = "show_compass"
	KeyShowTrail   = "show_trail"
	KeyRotateMap   = "rotate_map"
	KeySpeedUnit   = "speed_unit"

	KeyMapTransition      = "map_transition"
	KeyRotationTransition = "rotation_transition"
)

// SettingsKeys lists every key written by the settings panel.
var SettingsKeys = []string{
	KeyGPSInterval,
	KeyMapZoom,
	KeyShowSpeed,
	KeyShowStreet,
	KeyShowCompass,
	KeyShowTrail,
	KeyRotateMap,
	KeySpeedUnit,
	KeyMapTransition,
	KeyRotationTransition,
}
