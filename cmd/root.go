package cmd

import (
	"fmt"
	"runtime"

	"github.com/AnyUserName/imgfit/internal/preset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string

	logger  = zap.NewNop()
	presets = preset.Builtin()
)

var rootCmd = &cobra.Command{
	Use:   "imgfit",
	Short: "Resize images and fit them into a file size budget",
	Long: `imgfit scales an image by a percentage and exports it as JPEG or PNG.

With a target size, JPEG quality is binary searched for the highest
quality whose file still fits. PNG exports are losslessly optimized.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML file with extra presets")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgfit %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func setup(_ *cobra.Command, _ []string) error {
	l, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = l

	if configPath != "" {
		s, err := preset.Load(configPath)
		if err != nil {
			return err
		}
		presets = s
		logVerbose("loaded presets from %s: %v", configPath, s.Names())
	}
	return nil
}

// newLogger logs to stderr: debug and up with --verbose, warnings otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	logger.Sugar().Debugf(format, args...)
}
