package bcibridge

import (
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/phsym/console-slog"
)

// Portnumbers structs can contain all TCP port numbers used by the bridge.
type Portnumbers struct {
	Stream int
	Status int
}

// Ports globally holds all TCP port numbers used by the bridge.
var Ports Portnumbers

func setPortnumbers(base int) {
	Ports.Stream = base
	Ports.Status = base + 1
}

// BuildInfo can contain compile-time information about the build
type BuildInfo struct {
	Version string
	Githash string
	Gitdate string
	Date    string
	Host    string
	Summary string
}

// Build is a global holding compile-time information about the build
var Build = BuildInfo{
	Version: "0.3.1",
	Githash: "no git hash computed",
	Date:    "no build date computed",
}

// StartTime is a global holding the time init() was run
var StartTime time.Time

// ProblemLogger will log warning messages to a file
var ProblemLogger *log.Logger

// UpdateLogger will log state changes to a file
var UpdateLogger *log.Logger

// Log is the console logger for diagnostics that are not part of the operator dialogue.
var Log *slog.Logger

var logLevel = new(slog.LevelVar)

// SetVerbose switches console diagnostics between Info and Debug level.
func SetVerbose(verbose bool) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
}

// NewConsoleLogger returns a slog logger writing human-readable lines to w.
func NewConsoleLogger(w io.Writer) *slog.Logger {
	return slog.New(console.NewHandler(w, &console.HandlerOptions{Level: logLevel}))
}

func init() {
	setPortnumbers(5600)
	StartTime = time.Now()

	// The main program will override these, but at least initialize with sensible values
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
	UpdateLogger = log.New(io.Discard, "", log.LstdFlags)
	Log = NewConsoleLogger(os.Stderr)
}
