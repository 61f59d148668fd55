// Package main is the CLI entry point for headunit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/carhud/headunit/internal/config"
	"github.com/carhud/headunit/internal/domain"
	"github.com/carhud/headunit/internal/infra"
	"github.com/carhud/headunit/internal/usecase"
	"github.com/carhud/headunit/internal/web"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "headunit",
	Short: "Car head unit service - CarPlay engine, phone and media control",
	Long: `headunit runs the in-vehicle control service: it supervises the
CarPlay/Android Auto receiver engine, tracks the paired phone over
Bluetooth, and serves the web API the dashboard UI talks to.`,
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the head unit service",
	Long: `Starts the web API and all managers. Configuration is read from
HEADUNIT_* environment variables; defaults suit a Raspberry Pi with
the official 7" touchscreen.`,
	RunE: runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running service for engine and phone status",
	RunE:  runStatus,
}

var keyCmd = &cobra.Command{
	Use:   "key <name>",
	Short: "Send a key to the CarPlay engine (left, right, select, back, home)",
	Args:  cobra.ExactArgs(1),
	RunE:  runKey,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the systemd unit for auto-start",
	Long: `Writes and enables a systemd unit running 'headunit serve'.
As root this installs a system unit; as a regular user it installs a
user unit (systemctl --user).`,
	RunE: runInstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	apiBase    string
	jsonOutput bool
	uninstall  bool
)

func init() {
	statusCmd.Flags().StringVar(&apiBase, "api", "http://127.0.0.1:8000", "Base URL of the running service")
	keyCmd.Flags().StringVar(&apiBase, "api", "http://127.0.0.1:8000", "Base URL of the running service")
	installCmd.Flags().BoolVar(&uninstall, "uninstall", false, "Remove the unit instead of installing it")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := createLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("headunit starting",
		zap.String("version", Version),
		zap.String("engine_dir", cfg.Engine.Dir),
		zap.String("addr", cfg.Server.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared OS adapters
	runner := infra.NewCommandRunner()
	pm := infra.NewProcessManager()
	usb := infra.NewUSBProber(runner, logger)
	bt := infra.NewBluetoothCtl(runner, logger)

	// Engine supervision
	build := infra.NewBuildWatcher(cfg.Engine.Executable, logger)
	go build.Watch(ctx)
	settings := infra.NewFileSettingsWriter(cfg.Engine.SettingsPath, cfg.Engine.PipePath)
	pipe := infra.NewFIFOKeyPipe(cfg.Engine.PipePath)

	supCfg := usecase.DefaultSupervisorConfig(cfg.Engine.Dir, cfg.Engine.Executable)
	supCfg.DisplayEnv = cfg.Engine.Display
	supCfg.DefaultConfig.Width = cfg.Engine.Width
	supCfg.DefaultConfig.Height = cfg.Engine.Height
	supervisor := usecase.NewSupervisor(supCfg, settings, pipe, usb, build, pm, logger)

	// Call history store
	keyProvider := infra.NewFileKeyProvider(cfg.Data.Dir)
	dbKey, err := keyProvider.LoadOrCreateKey()
	if err != nil {
		return fmt.Errorf("failed to load call log key: %w", err)
	}
	callLog, err := infra.NewEncryptedCallLog(cfg.Data.Dir, dbKey)
	if err != nil {
		return fmt.Errorf("failed to open call log: %w", err)
	}
	defer callLog.Close()

	// Phone: D-Bus push source and oFono control when the system bus is
	// reachable, bluetoothctl polling and dbus-send otherwise
	var pushSource domain.PhoneEventSource
	if src, err := infra.NewDBusEventSource(logger); err != nil {
		logger.Warn("system bus unavailable, phone events will be polled", zap.Error(err))
	} else {
		pushSource = src
	}

	var calls domain.CallController
	if ofono, err := infra.NewOfonoCallController(logger); err != nil {
		logger.Warn("ofono unavailable, call control limited to dbus-send", zap.Error(err))
	} else {
		calls = ofono
	}

	pollCfg := infra.DefaultPollSourceConfig()
	pollCfg.Interval = cfg.Phone.PollInterval
	pollSource := infra.NewPollEventSource(pollCfg, bt, logger)

	phone := usecase.NewPhone(
		pushSource,
		pollSource,
		calls,
		infra.NewDbusSendCallController(runner),
		callLog,
		logger,
	)
	phone.Subscribe(func(domain.PhoneStatus) { web.CountPhoneEvent() })

	go func() {
		if err := phone.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("phone event loop exited", zap.Error(err))
		}
	}()

	bluetooth := usecase.NewBluetooth(bt, logger)
	media := usecase.NewMedia(infra.NewPlayerctlMedia(runner), logger)

	server := web.NewServer(cfg.Server.Addr(), web.Deps{
		Supervisor: supervisor,
		Phone:      phone,
		Bluetooth:  bluetooth,
		Media:      media,
		Logger:     logger,
	})

	err = server.Run(ctx)

	// The engine outlives nothing: kill it on the way out
	supervisor.Stop()
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := resty.New().SetTimeout(5 * time.Second)

	var status struct {
		CarPlay struct {
			Running        bool   `json:"running"`
			Status         string `json:"status"`
			Built          bool   `json:"built"`
			DongleDetected bool   `json:"dongle_detected"`
			Device         string `json:"connected_device"`
			Error          string `json:"error"`
		} `json:"carplay"`
		Phone struct {
			Connected  bool   `json:"connected"`
			DeviceName string `json:"device_name"`
			CallState  string `json:"call_state"`
		} `json:"phone"`
	}

	resp, err := client.R().SetResult(&status).Get(apiBase + "/api/status")
	if err != nil {
		fmt.Println("Status: SERVICE NOT RUNNING")
		fmt.Println("\nRun 'headunit serve' to start it.")
		return nil
	}
	if resp.IsError() {
		return fmt.Errorf("service returned %s", resp.Status())
	}

	fmt.Println("\n=== headunit Status ===")
	if status.CarPlay.Running {
		fmt.Printf("Engine: RUNNING (%s)\n", status.CarPlay.Status)
	} else {
		fmt.Println("Engine: STOPPED")
	}
	fmt.Printf("Built: %v\n", status.CarPlay.Built)
	fmt.Printf("Dongle: %v\n", status.CarPlay.DongleDetected)
	if status.CarPlay.Device != "" {
		fmt.Printf("Connected device: %s\n", status.CarPlay.Device)
	}
	if status.CarPlay.Error != "" {
		fmt.Printf("Last error: %s\n", status.CarPlay.Error)
	}

	if status.Phone.Connected {
		fmt.Printf("\nPhone: %s (call state: %s)\n", status.Phone.DeviceName, status.Phone.CallState)
	} else {
		fmt.Println("\nPhone: not connected")
	}
	fmt.Println("=======================")
	return nil
}

func runKey(cmd *cobra.Command, args []string) error {
	client := resty.New().SetTimeout(5 * time.Second)

	var result domain.Result
	resp, err := client.R().
		SetBody(map[string]string{"key": args[0]}).
		SetResult(&result).
		Post(apiBase + "/api/carplay/key")
	if err != nil {
		return fmt.Errorf("service not reachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("service returned %s", resp.Status())
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	fmt.Println(result.Message)
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	runner := infra.NewCommandRunner()
	units := infra.NewSystemdUnitManager(execMode, runner)

	if uninstall {
		if !units.IsInstalled() {
			fmt.Println("Unit not installed.")
			return nil
		}
		if err := units.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall unit: %w", err)
		}
		fmt.Printf("Removed %s\n", units.UnitPath())
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if err := units.Install(execPath); err != nil {
		return fmt.Errorf("failed to install unit: %w", err)
	}

	fmt.Printf("Installed %s (%s mode)\n", units.UnitPath(), execMode)
	fmt.Println("The service will start automatically on boot.")
	return nil
}

func createLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Path != "" {
		zcfg.OutputPaths = []string{cfg.Path}
		zcfg.ErrorOutputPaths = []string{cfg.Path}
	}

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("headunit %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
