package nav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"headsup/pkg/config"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 100*time.Millisecond, s.Interval)
	assert.Equal(t, 17, s.Zoom)
	assert.True(t, s.TrailEnabled)
	assert.True(t, s.RotationEnabled)
	assert.True(t, s.ShowStreet)
	assert.Equal(t, config.SpeedKMH, s.SpeedUnit)
	assert.Equal(t, 100, s.TrailCapacity)
	assert.Equal(t, 25.0, s.StreetMinDistance)
	assert.False(t, s.SpeedFromElapsed)
	assert.True(t, s.Position.HighAccuracy)
	assert.Equal(t, 5*time.Second, s.Position.Timeout)
}

func TestFromConfig_PanelOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	panel := config.Settings{
		GPSInterval: 1.5,
		MapZoom:     15,
		ShowTrail:   false,
		RotateMap:   false,
		ShowStreet:  false,
		SpeedUnit:   config.SpeedMPH,

		MapTransition:      0.25,
		RotationTransition: 1.2,
	}

	s := FromConfig(cfg, &panel)
	assert.Equal(t, 1500*time.Millisecond, s.Interval)
	assert.Equal(t, 15, s.Zoom)
	assert.False(t, s.TrailEnabled)
	assert.False(t, s.RotationEnabled)
	assert.False(t, s.ShowStreet)
	assert.Equal(t, config.SpeedMPH, s.SpeedUnit)
	assert.Equal(t, 250*time.Millisecond, s.MapTransition)
	assert.Equal(t, 1200*time.Millisecond, s.RotationTransition)
	// Untouched by the panel.
	assert.Equal(t, 100, s.TrailCapacity)
}
