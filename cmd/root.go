package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// ErrFocusProblems is returned when a scan finished but at least one page failed its checks.
var ErrFocusProblems = errors.New("focus order problems found")

// Exit codes returned by ExitCode.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitProblems  = 2
	ExitCancelled = 130
)

// NewRootCommand builds the focusmap command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewStoreProvider())
}

func newRootCommand(provider storeProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "focusmap",
		Short: "Maps the keyboard tab order of web pages and flags focus problems.",
		Long: `focusmap walks a page the way a keyboard user does, pressing Tab and recording
where focus lands. It compares the recorded order with the order the page should
have, reports stops that are out of order or missing, and can draw the tab order
onto the page.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			config.BindEnv(v)

			if err := readConfigFile(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// Reports may go to stdout, so logs stay on stderr.
			logger := observability.Initialize(cfg.Logger(), zapcore.Lock(os.Stderr))
			logger.Debug("Starting focusmap", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./focusmap.yaml or ~/.focusmap/focusmap.yaml)")

	rootCmd.AddCommand(newScanCmd(provider))
	rootCmd.AddCommand(newReportCmd(provider))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// readConfigFile loads cfgFile, or focusmap.yaml from the working or home directory. Only
// an explicitly named file has to exist.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName("focusmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.focusmap")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root pre-run hook.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// Execute runs the root command under ctx and logs a failure.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrFocusProblems):
		// The report already says what failed.
	default:
		if logger := observability.GetLogger(); logger.Core().Enabled(zap.ErrorLevel) {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

// ExitCode maps the result of Execute to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrFocusProblems):
		return ExitProblems
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitError
	}
}
