package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/peer-calls/log"
	"github.com/spf13/pflag"

	"github.com/veild/veild/config"
	"github.com/veild/veild/filter"
	"github.com/veild/veild/overlay"
	"github.com/veild/veild/service"
	"github.com/veild/veild/types"
)

var (
	Version    = "unknown"
	CommitHash = ""
)

type Arguments struct {
	ConfigPath string
	SocketPath string
	LogLevel   string

	NoStartDaemon bool

	Toggle      bool
	Temperature int
	Brightness  int
	Mode        string
	Status      bool
	Subscribe   bool

	Version bool

	flags *pflag.FlagSet
}

// Request builds the client request from the one-shot flags. The second
// return value is false when no flag asked for anything.
func (a Arguments) Request() (types.Request, bool) {
	var request types.Request

	hasAction := false

	if a.Toggle {
		request.Toggle = true
		hasAction = true
	}

	if a.flags.Changed("temperature") {
		kelvin := a.Temperature
		request.Temperature = &kelvin
		hasAction = true
	}

	if a.flags.Changed("brightness") {
		percent := a.Brightness
		request.Brightness = &percent
		hasAction = true
	}

	if a.flags.Changed("mode") {
		mode := types.Mode(a.Mode)
		request.Mode = &mode
		hasAction = true
	}

	if a.Status {
		request.State = true
		hasAction = true
	}

	if a.Subscribe {
		request.Subscribe = []types.SubscriptionKey{types.SubscriptionKeyState}
		hasAction = true
	}

	return request, hasAction
}

func parseArgs(argsSlice []string) (Arguments, error) {
	var args Arguments

	fs := pflag.NewFlagSet(argsSlice[0], pflag.ContinueOnError)

	fs.SetOutput(os.Stdout)

	fs.Usage = func() {
		fmt.Fprintf(os.Stdout, "Usage of %s:\n", argsSlice[0])
		fs.PrintDefaults()
	}

	fs.StringVarP(&args.ConfigPath, "config", "c", "", "Config file to use")
	fs.StringVarP(&args.SocketPath, "sock", "s", config.DefaultSocketPath(), "Unix domain socket path for RPC")
	fs.StringVarP(&args.LogLevel, "log-level", "l", "", "Log level: trace, debug, info, warn, error or disabled")

	fs.BoolVarP(&args.Toggle, "toggle", "T", false, "Toggle the tint overlay on or off")
	fs.IntVarP(&args.Temperature, "temperature", "t", 0, "Color temperature to set, neutral is 6500")
	fs.IntVarP(&args.Brightness, "brightness", "b", 0, "Brightness percentage to set, max is 100")
	fs.StringVarP(&args.Mode, "mode", "m", "", "Preset mode to apply: day, sunset, night or sleep")
	fs.BoolVar(&args.Status, "status", false, "Print the current state and exit")
	fs.BoolVarP(&args.Subscribe, "subscribe", "S", false, "Keep printing state updates as json lines")

	fs.BoolVarP(&args.NoStartDaemon, "no-daemon", "D", false, "Do not start daemon if not running")

	fs.BoolVarP(&args.Version, "version", "V", false, "Print version and exit")

	if err := fs.Parse(argsSlice); err != nil {
		return Arguments{}, fmt.Errorf("parsing args: %w", err)
	}

	args.flags = fs

	return args, nil
}

func main() {
	args, err := parseArgs(os.Args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(2)
		}

		panic(err)
	}

	if args.Version {
		fmt.Println(Version)

		if CommitHash != "" {
			fmt.Println(CommitHash)
		}

		return
	}

	if err := main2(args); err != nil {
		panic(err)
	}
}

func main2(args Arguments) error {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if args.flags.Changed("sock") {
		cfg.SocketPath = args.SocketPath
	}

	if args.flags.Changed("log-level") {
		cfg.Log.Level = args.LogLevel
	}

	logger := log.New().WithConfig(log.NewConfig(log.ConfigMap{
		"**": cfg.Log.PeerCallsLevel(),
	}))

	ctx := context.Background()

	// We need to handle these events so that the listener removes the socket
	// file gracefully, otherwise the daemon might not start successfully next
	// time.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	daemonStarted := false

	if _, err := os.Stat(cfg.SocketPath); err != nil && !args.NoStartDaemon {
		if err := startDaemon(ctx, logger, cfg); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}

		daemonStarted = true

		logger.Info("Started daemon", log.Ctx{
			"socket": cfg.SocketPath,
		})
	}

	if request, hasAction := args.Request(); hasAction {
		if err := runClient(ctx, cfg.SocketPath, request, args.Subscribe); err != nil {
			return err
		}
	}

	// If we started the daemon, keep running until the context is canceled.
	if daemonStarted {
		<-ctx.Done()
	}

	return nil
}

func startDaemon(ctx context.Context, logger log.Logger, cfg config.Config) error {
	engine := filter.New(logger)

	var svc *service.Service

	// A topology change means a fresh overlay surface is waiting for its
	// first paint, so re-emit the current directive to all subscribers.
	displays := overlay.New(logger, func(surfaces []string) {
		svc.Broadcast(engine.Update())
	})

	svc = service.New(service.Params{
		SocketPath: cfg.SocketPath,
		Log:        logger,
		Engine:     engine,
		Displays:   displays,
	})

	if err := svc.Listen(); err != nil {
		displays.Close()

		return fmt.Errorf("failed to start service: %w", err)
	}

	go func() {
		if err := svc.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Serve done", err, nil)
		}
	}()

	go func() {
		<-ctx.Done()
		displays.Close()
	}()

	// The session bus is optional: tray integrations that only speak the
	// socket protocol still work without it.
	if conn, err := NewDBus(ctx, logger, engine); err != nil {
		logger.Error("Failed to register dbus interface", err, nil)
	} else {
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
	}

	return nil
}

func runClient(ctx context.Context, socketPath string, request types.Request, subscribe bool) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial unix socket: %w", err)
	}

	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	decoder := json.NewDecoder(conn)

	var response types.Response

	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if response.Error != "" {
		return fmt.Errorf("request failed: %s", response.Error)
	}

	printResponse(response)

	for subscribe {
		var push types.Response

		if err := decoder.Decode(&push); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("decoding update: %w", err)
		}

		printResponse(push)
	}

	return nil
}

func printResponse(response types.Response) {
	line, err := json.Marshal(response)
	if err != nil {
		return
	}

	fmt.Println(string(line))
}
