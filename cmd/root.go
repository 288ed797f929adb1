package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Persistent flag values.
var (
	globalHost     string
	globalPort     int
	globalLogLevel string
	globalEnvFile  string
	globalVerbose  bool
)

// Per-invocation state, populated by PersistentPreRunE.
var (
	settings *config.Settings
	logger   = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytdlp-remote",
	Short: "Queue downloads on a yt-dlp WebUI and watch its queue",
	Long: `ytdlp-remote talks to a yt-dlp WebUI instance over HTTP. It submits download
requests, reports the remote queue as readings, and can run as a small daemon
that polls the queue and accepts download commands locally.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeGlobalState(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalHost, "host", "", "WebUI host (or set YTDLP_WEBUI_HOST)")
	rootCmd.PersistentFlags().IntVar(&globalPort, "port", 0, "WebUI port (or set YTDLP_WEBUI_PORT, default 3000)")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&globalEnvFile, "env-file", ".env", "File with KEY=VALUE overrides")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log to stderr instead of the log file")
	rootCmd.SetVersionTemplate("ytdlp-remote version {{.Version}}\n")
}

// initializeGlobalState resolves settings (file, then env, then flags) and
// configures logging.
func initializeGlobalState(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(globalEnvFile); err != nil {
		return err
	}

	s, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		s.Endpoint.Host = globalHost
	}
	if cmd.Flags().Changed("port") {
		s.Endpoint.Port = globalPort
	}
	if globalLogLevel != "" {
		s.General.LogLevel = globalLogLevel
	}
	if err := s.Validate(); err != nil {
		return err
	}
	settings = s

	logsDir := config.GetLogsDir()
	if globalVerbose {
		logsDir = ""
	}
	l, _, err := utils.NewLogger(s.General.LogLevel, logsDir)
	if err != nil {
		// Logging is best effort; commands still run.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		l = zap.NewNop()
	}
	logger = l.With(zap.String("cmd", cmd.Name()))

	if logsDir != "" {
		if _, err := utils.CleanupLogs(logsDir, s.General.LogRetentionCount); err != nil {
			logger.Warn("log cleanup failed", zap.Error(err))
		}
	}
	return nil
}

// newService builds the remote client from the resolved settings. A missing
// host is reported here rather than silently doing nothing.
func newService() (*core.RemoteService, error) {
	ep, err := settings.EndpointConfig()
	if err != nil {
		if core.IsValidation(err) && settings.Endpoint.Host == "" {
			return nil, fmt.Errorf("no WebUI configured: use --host, set %s, or run 'ytdlp-remote config set host <host>'", config.EnvHost)
		}
		return nil, err
	}
	timeout := settings.Endpoint.Timeout
	if timeout <= 0 {
		timeout = core.DefaultTimeout
	}
	return core.NewRemoteService(ep,
		core.WithTimeout(timeout),
		core.WithLogger(logger.Named("remote")),
	), nil
}

// requestTimeout bounds a single foreground command.
func requestTimeout() time.Duration {
	if settings != nil && settings.Endpoint.Timeout > 0 {
		return settings.Endpoint.Timeout + time.Second
	}
	return core.DefaultTimeout + time.Second
}
