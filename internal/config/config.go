package config

import (
	"path/filepath"
	"time"
)

const VERSION = "1.0.0"

// Config holds global application settings.
//
// These are process-level settings for the dispatcher itself (tool paths,
// poll tuning). The per-site queue option translation file is a separate
// artifact parsed by internal/queue.
type Config struct {
	Debug   bool
	Quiet   bool
	Version string

	// External queue tools
	QsubBin  string
	QstatBin string

	// Default queue option translation file, relative to the working
	// directory unless absolute.
	QueueConf string

	// Completion monitor tuning
	PollInitial   time.Duration // first marker poll interval
	PollGrowth    float64       // backoff multiplier per retry
	PollMax       time.Duration // poll interval ceiling
	LivenessEvery int           // run a queue liveness check every N polls

	// Waits between staleness kick rounds when the queue reports the job
	// gone but the marker has not appeared.
	KickWaits []time.Duration
}

// Global holds the singleton configuration instance
var Global Config

// LoadDefaults populates Global with built-in defaults.
func LoadDefaults() {
	Global = Config{
		Debug:   false,
		Quiet:   false,
		Version: VERSION,

		QsubBin:  "qsub",
		QstatBin: "qstat",

		QueueConf: filepath.Join("conf", "queue.conf"),

		PollInitial:   100 * time.Millisecond,
		PollGrowth:    1.2,
		PollMax:       3 * time.Second,
		LivenessEvery: 10,

		KickWaits: []time.Duration{
			3 * time.Second,
			7 * time.Second,
			60 * time.Second,
		},
	}
}
