package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/decadal/internal/model"
	"github.com/ppiankov/decadal/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	noAtomic     bool
	noCache      bool
	ignoreRobots bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Split a World Heritage Sites export into decade files",
	Long: `Run loads the input, classifies every site by date_inscribed and writes:

  seventies  1970-1979
  eighties   1980-1989
  nineties   1990-1999
  aughties   2000-2009
  teensies   2010-2019
  data       every row

The input may be a local file (default: data.csv) or an http(s) URL.
Nothing is written unless every row loads and has an integer date_inscribed.

Example:
  decadal run
  decadal run whc-sites-2019.csv --output-dir ./decades
  decadal run whc-sites.csv --encoding windows-1252 --format yaml
  decadal run https://example.org/whc-sites.csv --no-cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	def := model.DefaultConfig()
	flags := runCmd.Flags()

	// Input flags
	flags.String("delimiter", def.Input.Delimiter, "field delimiter (single character)")
	flags.String("encoding", def.Input.Encoding, "input character encoding (e.g. utf-8, windows-1252, latin1)")
	flags.Bool("trim", def.Input.Trim, "trim surrounding whitespace from values")

	// Output flags
	flags.String("output-dir", def.Output.Dir, "directory for the decade files")
	flags.String("format", def.Output.Format, "output format (json, yaml)")
	flags.Int("indent", def.Output.Indent, "JSON indent width (0 = compact)")
	flags.Int("workers", def.Output.Workers, "number of concurrent writers")
	flags.BoolVar(&noAtomic, "no-atomic", false, "write files in place instead of temp file + rename")

	// Run flags
	flags.Duration("timeout", def.Timeout, "overall run timeout")

	// Remote input flags
	flags.String("ua", def.HTTP.UserAgent, "HTTP User-Agent")
	flags.Int64("max-bytes", def.HTTP.MaxBodyBytes, "max bytes to download")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.BoolVar(&noCache, "no-cache", false, "disable cache (force fresh download)")
	flags.BoolVar(&ignoreRobots, "ignore-robots", false, "do not consult robots.txt")

	for key, flag := range map[string]string{
		"input.delimiter":     "delimiter",
		"input.encoding":      "encoding",
		"input.trim":          "trim",
		"output.dir":          "output-dir",
		"output.format":       "format",
		"output.indent":       "indent",
		"output.workers":      "workers",
		"timeout":             "timeout",
		"http.user_agent":     "ua",
		"http.max_body_bytes": "max-bytes",
		"http.http_proxy":     "http-proxy",
		"http.https_proxy":    "https-proxy",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunOverrides(cmd, cfg, args)
	if err := cfg.Validate(); err != nil {
		return &UsageError{Err: err}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	errOut := cmd.ErrOrStderr()
	if cfg.Verbose {
		printRunHeader(errOut, cfg)
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return &UsageError{Err: err}
	}
	if cfg.Verbose {
		p.SetLog(errOut)
	}

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	printRunSummary(errOut, report)
	return nil
}

// applyRunOverrides applies the positional input and negated flags, which
// have no viper key of their own
func applyRunOverrides(cmd *cobra.Command, cfg *model.Config, args []string) {
	if len(args) == 1 {
		cfg.Input.Path = args[0]
	}
	if cmd.Flags().Changed("no-atomic") {
		cfg.Output.Atomic = !noAtomic
	}
	if cmd.Flags().Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if cmd.Flags().Changed("ignore-robots") {
		cfg.HTTP.RespectRobots = !ignoreRobots
	}
	if verbose {
		cfg.Verbose = true
	}
}

func printRunHeader(w io.Writer, cfg *model.Config) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  decadal\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Input:        %s\n", cfg.Input.Path)
	fmt.Fprintf(w, "  Encoding:     %s\n", cfg.Input.Encoding)
	fmt.Fprintf(w, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(w, "  Format:       %s\n", cfg.Output.Format)
	fmt.Fprintf(w, "  Writers:      %d\n", cfg.Output.Workers)
	fmt.Fprintf(w, "  Timeout:      %v\n", cfg.Timeout)
	fmt.Fprintf(w, "\n")
}

func printRunSummary(w io.Writer, report *model.RunReport) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Source:      %s\n", report.Source)
	fmt.Fprintf(w, "  Rows:        %d\n", report.Rows)
	for _, b := range report.Buckets {
		fmt.Fprintf(w, "  %-11s  %d (%d-%d)\n", b.Name+":", b.Count, b.First, b.Last)
	}
	fmt.Fprintf(w, "  Unbucketed:  %d\n", report.Unbucketed)
	fmt.Fprintf(w, "  Files:       %d in %v\n", len(report.Artifacts), report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
}
