package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Live fields are
// applied without restart; RestartRequired lists the sections that changed
// but only take effect on the next start.
type ConfigDiff struct {
	SegmenterChanged bool
	NewSegmenter     SegmenterConfig

	HotwordsChanged bool
	NewHotwords     HotwordsConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel

	RestartRequired []string
}

// Live reports whether any live-tunable field changed.
func (d ConfigDiff) Live() bool {
	return d.SegmenterChanged || d.HotwordsChanged || d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Segmenter != new.Segmenter {
		d.SegmenterChanged = true
		d.NewSegmenter = new.Segmenter
	}
	if !hotwordsEqual(old.Hotwords, new.Hotwords) {
		d.HotwordsChanged = true
		d.NewHotwords = new.Hotwords
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if old.Recognition != new.Recognition {
		d.RestartRequired = append(d.RestartRequired, "recognition")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Feed != new.Feed {
		d.RestartRequired = append(d.RestartRequired, "feed")
	}
	return d
}

func hotwordsEqual(a, b HotwordsConfig) bool {
	return a.Correct == b.Correct &&
		a.MinSimilarity == b.MinSimilarity &&
		slices.Equal(a.Words, b.Words)
}
