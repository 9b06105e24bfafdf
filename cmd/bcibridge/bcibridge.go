package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/usnistgov/bcibridge"
	"github.com/usnistgov/bcibridge/internal/runledger"
	"github.com/usnistgov/bcibridge/internal/unboundedchan"
	"github.com/usnistgov/bcibridge/openbci"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var gitdate = "git date not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err2 := os.MkdirAll(dir, 0775); err2 != nil {
			return "", err2
		}
	}

	// Create an empty file path/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper says where to find config files and reads the first one found, creating
// ~/.bcibridge/config.yaml if needed.
func setupViper(home string) error {
	dotBridge := filepath.Join(home, ".bcibridge")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotBridge, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.FromSlash("/etc/bcibridge"))
	viper.AddConfigPath(dotBridge)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	}, "", log.LstdFlags)
}

// splitLabels turns "a, b,c" into [a b c]; empty input gives nil.
func splitLabels(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	labels := strings.Split(list, ",")
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
	}
	return labels
}

// openLink opens the simulated board or the serial board named in cfg.
func openLink(cfg bcibridge.LinkConfig) (bcibridge.DeviceLink, string, error) {
	if cfg.Dummy {
		return openbci.NewNoHardware(cfg.Daisy), "simulated board", nil
	}
	board, err := openbci.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, "", err
	}
	return board, board.String(), nil
}

func openSink(cfg bcibridge.SinkConfig) (bcibridge.StreamSink, error) {
	switch cfg.Backend {
	case bcibridge.SinkWebSocket:
		return bcibridge.NewWebSocketSink(bcibridge.Ports.Stream)
	default:
		return bcibridge.NewZMQSink(bcibridge.Ports.Stream)
	}
}

// ledgerRecorder stores publications in the run ledger.
type ledgerRecorder struct {
	db *runledger.Connection
}

func (lr ledgerRecorder) RecordPublication(md bcibridge.StreamMetadata) {
	labels := make([]string, len(md.Channels))
	for i, ch := range md.Channels {
		labels[i] = ch.Label
	}
	lr.db.RecordPublication(&runledger.PublicationMessage{
		SourceID:   md.SourceID,
		Name:       md.Name,
		StreamType: md.Type,
		Labels:     labels,
		Nchannels:  md.ChannelCount,
		SampleRate: md.SampleRate,
		Published:  time.Now(),
	})
}

func main() {
	buildDate = strings.ReplaceAll(buildDate, ".", " ") // workaround for Make problems
	bcibridge.Build.Date = buildDate
	bcibridge.Build.Githash = githash
	bcibridge.Build.Gitdate = gitdate
	bcibridge.Build.Summary = fmt.Sprintf("bcibridge version %s (git commit %s of %s)",
		bcibridge.Build.Version, githash, gitdate)
	if host, err := os.Hostname(); err == nil {
		bcibridge.Build.Host = host
	} else {
		bcibridge.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	port := flag.String("port", "", "serial port of the board (default: auto-detect)")
	channels := flag.String("channels", "", "comma-separated channel labels")
	dummy := flag.Bool("dummy", false, "use a simulated board")
	noAutostart := flag.Bool("noautostart", false, "wait for /start instead of streaming at once")
	pingLedger := flag.Bool("pingledger", false, "check that the run ledger database answers, then quit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is bcibridge version %s\n", bcibridge.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		os.Exit(0)
	}

	banner := fmt.Sprintf("\nThis is bcibridge version %s (git commit %s)\n", bcibridge.Build.Version, githash)
	fmt.Print(banner)

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(HOME, ".bcibridge", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	bcibridge.ProblemLogger = startLogger(problemname)
	bcibridge.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems       to %s\n", problemname)
	fmt.Printf("Logging client updates to %s\n", logname)
	bcibridge.UpdateLogger.Printf("\n\n\n\n%s", banner)

	if err := setupViper(HOME); err != nil {
		panic(err)
	}
	cfg, err := bcibridge.LoadConfig(viper.GetViper())
	if err != nil {
		panic(err)
	}
	if *port != "" {
		cfg.Link.Port = *port
	}
	if labels := splitLabels(*channels); labels != nil {
		cfg.Stream.Labels = labels
	}
	if *dummy {
		cfg.Link.Dummy = true
	}
	if *pingLedger {
		if err := runledger.PingServer(cfg.Ledger.Addr, os.Stdout); err != nil {
			fmt.Printf("Run ledger at %s: %v\n", cfg.Ledger.Addr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	fmt.Println("\n-------INSTANTIATING BOARD-------")
	link, device, err := openLink(cfg.Link)
	if err != nil {
		bcibridge.ProblemLogger.Printf("Could not open the board: %v\n", err)
		bcibridge.Log.Error("could not open the board", "err", err)
		os.Exit(1)
	}
	bcibridge.Log.Info("board connected", "device", device,
		"channels", link.ChannelCount(), "rate", link.SampleRate())

	sink, err := openSink(cfg.Sink)
	if err != nil {
		link.Close()
		bcibridge.Log.Error("could not open the stream sink", "backend", cfg.Sink.Backend, "err", err)
		os.Exit(1)
	}
	defer sink.Close()
	bcibridge.Log.Info("publishing", "backend", cfg.Sink.Backend, "port", bcibridge.Ports.Stream,
		"status_port", bcibridge.Ports.Status)

	abort := make(chan struct{})
	updates := unboundedchan.NewUnboundedChannel[bcibridge.ClientUpdate]()
	updaterDone := make(chan struct{})
	go func() {
		defer close(updaterDone)
		if err := bcibridge.RunClientUpdater(bcibridge.Ports.Status, updates.Out(), abort); err != nil {
			bcibridge.ProblemLogger.Printf("Status updates disabled: %v\n", err)
		}
	}()

	ledger := runledger.Dummy()
	if cfg.Ledger.Enabled {
		session := runledger.NewSessionMessage(bcibridge.Build.Version, githash, device)
		ledger = runledger.Start(cfg.Ledger.Addr, session, bcibridge.ProblemLogger, abort)
	}

	controller, err := bcibridge.NewController(link, sink, cfg, os.Stdout)
	if err != nil {
		link.Close()
		bcibridge.Log.Error("could not set up the stream", "err", err)
		os.Exit(1)
	}
	defer controller.Close()
	controller.SetUpdates(updates.In())
	controller.SetRecorder(ledgerRecorder{ledger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := controller.Begin(!*noAutostart); err != nil {
		fmt.Printf("Error: %v.\n", err)
	}
	if err := controller.Run(ctx, os.Stdin); err != nil {
		bcibridge.ProblemLogger.Printf("Reading operator input: %v\n", err)
	}

	shutdown(updates, updaterDone, abort)
	ledger.Wait()
}

// shutdown closes the update queue, lets the updater publish what was queued, then
// closes abort. Updates the updater did not take are discarded so the queue ends.
func shutdown(updates *unboundedchan.UnboundedChannel[bcibridge.ClientUpdate],
	updaterDone <-chan struct{}, abort chan struct{}) {
	updates.Close()
	select {
	case <-updaterDone:
	case <-time.After(time.Second):
	}
	close(abort)
	for range updates.Out() {
	}
}
