package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/decadal/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the released version of decadal
const Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "decadal",
	Short: "decadal - split World Heritage Sites by decade of inscription",
	Long: `decadal reads a delimited export of UNESCO World Heritage Sites and
partitions it by the decade of each site's date_inscribed.

It writes one file per decade (seventies, eighties, nineties, aughties,
teensies) plus the full dataset (data), preserving row order and every
value verbatim.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// UsageError marks invalid flags, arguments or configuration
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

// Describe renders an error as "<stage> failed: <detail>" when the failing
// pipeline stage is known
func Describe(err error) string {
	var staged interface{ Stage() model.Stage }
	if errors.As(err, &staged) {
		return fmt.Sprintf("%s failed: %v", staged.Stage(), staged)
	}
	return err.Error()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "decadal v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.decadal/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	setDefaults(viper.GetViper(), model.DefaultConfig())

	rootCmd.AddCommand(versionCmd)
}

// setDefaults registers every config key so DECADAL_* variables and config
// files can set keys that have no flag
func setDefaults(v *viper.Viper, cfg *model.Config) {
	v.SetDefault("input.path", cfg.Input.Path)
	v.SetDefault("input.delimiter", cfg.Input.Delimiter)
	v.SetDefault("input.encoding", cfg.Input.Encoding)
	v.SetDefault("input.trim", cfg.Input.Trim)
	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.indent", cfg.Output.Indent)
	v.SetDefault("output.atomic", cfg.Output.Atomic)
	v.SetDefault("output.workers", cfg.Output.Workers)
	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	v.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	v.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	v.SetDefault("http.no_proxy", cfg.HTTP.NoProxy)
	v.SetDefault("http.respect_robots", cfg.HTTP.RespectRobots)
	v.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	v.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	v.SetDefault("timeout", cfg.Timeout)
}

// defaultConfigPath returns $HOME/.decadal/config.yaml
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error finding home directory: %w", err)
	}
	return filepath.Join(home, ".decadal", "config.yaml"), nil
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".decadal"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// DECADAL_OUTPUT_DIR sets output.dir
	viper.SetEnvPrefix("DECADAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: could not read config file %s: %v\n", cfgFile, err)
	}
}

// loadConfig merges defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, &UsageError{Err: fmt.Errorf("decode config: %w", err)}
	}
	return cfg, nil
}
