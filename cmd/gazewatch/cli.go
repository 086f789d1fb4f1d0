package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// options are the flags that are not config keys.
type options struct {
	ConfigDir   string
	ShowVersion bool
}

// newFlagSet declares the command-line flags. Flags that map to config keys
// are bound into viper by config.BindFlags, so only flags set on the command
// line override the config file.
func newFlagSet(out io.Writer) (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\nCalibrates the subject's gaze, then reports INSIDE / OUTSIDE / NO_FACE per frame.\n\nFlags:\n", AppName)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ConfigDir, "config-dir", ".", "directory containing gazewatch.cfg.json")
	fs.BoolVarP(&opts.ShowVersion, "version", "v", false, "print version and exit")

	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./gazelogs", "directory for log files")
	fs.Float64("margin", 0.05, "acceptance region margin added to the calibrated bounds")
	fs.String("status-file", "", "rewrite the current status to this file once per interval")
	fs.String("subject", "", "subject name stored with the session")

	fs.StringP("source", "s", "replay", "frame source (replay, imagedir, camera)")
	fs.StringP("input", "i", "", "recording file or image directory")
	fs.Bool("mirror", true, "flip frames horizontally")
	fs.Int("device", 0, "camera device index")
	fs.String("trigger", "keyboard", "operator input (keyboard, recording, none)")
	fs.String("record", "", "write detector output to this replay file")
	fs.String("detector-url", "", "landmark detector sidecar URL")

	fs.String("storage", "memory", "comma-separated storage backends (memory, sqlite, postgres, influx, websocket, log, none)")
	fs.StringP("output-dir", "o", "./reports", "directory for exported session reports")
	fs.Bool("upload", false, "upload the exported report to the server")
	fs.Bool("otel", false, "enable OpenTelemetry logs and metrics")

	return fs, opts
}
