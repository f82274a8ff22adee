package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"datalogger-plots/internal/monitoring"
	"datalogger-plots/internal/server"
)

// ServeOptions holds the options of the serve command.
type ServeOptions struct {
	Addr       string
	ConfigFile string
	Smoothing  int

	set map[string]bool
}

// SetupServeCommand configures the serve command.
func SetupServeCommand() *flag.FlagSet {
	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)

	serveCmd.String("addr", ":8501", "Listen address of the interactive UI")
	serveCmd.String("config", "", "YAML configuration file")
	serveCmd.Int("smoothing", 3, "Initial smoothing window of the UI slider (0-10)")

	serveCmd.Usage = func() {
		fmt.Println(AppName + " - Interactive datalogger charts in the browser")
		fmt.Println("\nUsage:")
		fmt.Println("  " + AppName + " serve [options]")
		fmt.Println("\nExamples:")
		fmt.Println("  " + AppName + " serve")
		fmt.Println("  " + AppName + " serve --addr=127.0.0.1:9000 --smoothing=5")
		fmt.Println("\nOptions:")
		serveCmd.PrintDefaults()
	}

	return serveCmd
}

func ParseServeOptions(cmd *flag.FlagSet) ServeOptions {
	set := make(map[string]bool)
	cmd.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	return ServeOptions{
		Addr:       cmd.Lookup("addr").Value.String(),
		ConfigFile: cmd.Lookup("config").Value.String(),
		Smoothing:  cmd.Lookup("smoothing").Value.(flag.Getter).Get().(int),
		set:        set,
	}
}

// ServeCommand runs the UI until SIGINT or SIGTERM.
func ServeCommand(options ServeOptions) error {
	cfg, err := loadConfig(options.ConfigFile)
	if err != nil {
		return err
	}
	if options.set["addr"] {
		cfg.Server.Addr = options.Addr
	}
	if options.set["smoothing"] {
		cfg.Server.DefaultSmoothing = options.Smoothing
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.New(cfg, logger, monitoring.NewMetrics())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Serving charts on http://%s\n", displayAddr(cfg.Server.Addr))
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
