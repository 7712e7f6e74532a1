package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Resolved in PersistentPreRunE from the config file, the environment
	// and the flags below, in increasing precedence.
	Config config.Config
	Logger logger.Logger

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the queryvals CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "queryvals",
		Short: "Compose in-memory values into SQL row sources",
		Long: `queryvals encodes a list of values into one text payload and generates
the SQL that parses it back into typed rows.

Input files are YAML: either a scalar list

  kind: int32
  values: [1, 2, 3]

or a record list described by its fields

  fields:
    - {name: ID, kind: int32}
    - {name: Title, kind: string, nullable: true}
  rows:
    - {ID: 1, Title: first}`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd.Flags())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")
	flags.String("dialect", "sqlserver", "SQL dialect (sqlserver|sqlite)")
	flags.String("token-stream", config.TokenStreamAuto, "engine token stream capability (auto|on|off)")
	flags.Bool("row-bound-hint", false, "bound the outer query by the element count")
	flags.Int("decimal-scale", 6, "default decimal scale (0..38)")
	flags.String("log-level", "none", "log level (none|debug|info|warn|error)")

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))

	return cmd
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"dialect":        "dialect",
	"token-stream":   "token_stream",
	"row-bound-hint": "use_row_bound_hint",
	"decimal-scale":  "default_decimal_scale",
	"log-level":      "log.level",
}

func (o *RootOptions) load(flags *pflag.FlagSet) error {
	v := o.viper
	if o.ConfigFile != "" {
		v.SetConfigFile(o.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return WrapExitError(ExitCommandError, "failed to read config", err)
		}
	}
	v.SetEnvPrefix("QUERYVALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Verbose && cfg.Log.Level == "none" {
		cfg.Log.Level = "debug"
	}

	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log configuration", err)
	}
	o.Config = cfg
	o.Logger = l
	return nil
}

// bindFlags binds only the flags the user set, so that unset flags never
// shadow the config file or the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}
