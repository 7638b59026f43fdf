package pkgdblog

import (
	"io"

	"github.com/rockbears/log"
	"github.com/sirupsen/logrus"
)

// Conf contains log configuration.
type Conf struct {
	Level  string `toml:"level" default:"info" comment:"Log Level: debug, info, warning or error" json:"level"`
	Format string `toml:"format" default:"text" comment:"Log Format: text or json" json:"format"`
}

// Log fields shared by the engine.
var (
	FieldAction   = log.Field("action")
	FieldActor    = log.Field("actor")
	FieldPackage  = log.Field("package")
	FieldListing  = log.Field("package_listing")
	FieldMethod   = log.Field("method")
	FieldRoute    = log.Field("route")
	FieldRequest  = log.Field("request_id")
	FieldDuration = log.Field("duration_ms")
)

func init() {
	log.RegisterField(
		FieldAction,
		FieldActor,
		FieldPackage,
		FieldListing,
		FieldMethod,
		FieldRoute,
		FieldRequest,
		FieldDuration,
	)
}

// Initialize sets log level and format.
func Initialize(conf *Conf) {
	switch conf.Level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	switch conf.Format {
	case "discard":
		logrus.SetOutput(io.Discard)
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
