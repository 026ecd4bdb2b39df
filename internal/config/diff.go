package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; everything else
// is reported in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VolumeChanged bool
	NewVolume     float64

	// VADChanged is true if any detection parameter changed. The new values
	// apply to the next capture session.
	VADChanged bool

	// RestartRequired lists the top-level sections that changed but are only
	// read at startup.
	RestartRequired []string
}

// Changed reports whether d carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VolumeChanged || d.VADChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Playback.Volume != new.Playback.Volume {
		d.VolumeChanged = true
		d.NewVolume = new.Playback.Volume
	}

	if !reflect.DeepEqual(detectionParams(old.VAD), detectionParams(new.VAD)) {
		d.VADChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Playback.ChunkMS != new.Playback.ChunkMS ||
		old.Playback.ProgressIntervalMS != new.Playback.ProgressIntervalMS ||
		!reflect.DeepEqual(old.Playback.Output, new.Playback.Output) {
		d.RestartRequired = append(d.RestartRequired, "playback")
	}
	if old.VAD.Enabled != new.VAD.Enabled || !reflect.DeepEqual(old.VAD.Capture, new.VAD.Capture) {
		d.RestartRequired = append(d.RestartRequired, "vad.capture")
	}
	if !reflect.DeepEqual(old.Feed, new.Feed) {
		d.RestartRequired = append(d.RestartRequired, "feed")
	}
	if old.Clips != new.Clips {
		d.RestartRequired = append(d.RestartRequired, "clips")
	}

	return d
}

// detectionParams strips the fields of c that are not detection parameters.
func detectionParams(c VADConfig) VADConfig {
	c.Enabled = false
	c.Capture = DeviceEntry{}
	return c
}
