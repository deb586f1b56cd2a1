package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zoobzio/recql"
	"github.com/zoobzio/recql/postgres"
	"github.com/zoobzio/recql/schema"
)

// EnvPrefix prefixes environment variables read as configuration.
const EnvPrefix = "RECQL"

// Config holds the settings shared by all commands.
type Config struct {
	DSN          string
	LogLevel     string
	SharingTable string
	SuccessCode  string
	Schema       string
	User         string
	Read         []string
	ReadAll      []string
}

// RootOptions carries the resolved configuration to subcommands.
type RootOptions struct {
	Config Config
	Log    *logrus.Logger
}

// NewRootCommand creates the recql command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &RootOptions{Log: logrus.New()}
	opts.Log.SetOutput(stderr)

	cmd := &cobra.Command{
		Use:   "recql",
		Short: "Compile and run metadata-driven queries against PostgreSQL",
		Long: `recql compiles query documents written against a YAML schema into
PostgreSQL and optionally runs them, applying per-user record sharing.

Configuration is read from flags, RECQL_* environment variables and an
optional YAML config file, in that order of priority.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(viper.New(), cmd.Flags())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "configuration file to read from")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("sharing-table", postgres.DefaultSharingTable, "relation recording per-user record sharing")
	flags.String("success-code", recql.DefaultSuccessCode, "status prefix returned by write procedures on success")
	flags.StringP("schema", "s", "", "YAML schema document")
	flags.String("user", "", "caller identity for record sharing; empty disables row security")
	flags.StringSlice("read", nil, "type names the caller may read when shared")
	flags.StringSlice("read-all", nil, "type names the caller may read without sharing")

	cmd.AddCommand(NewCompileCommand(opts, stdout))
	cmd.AddCommand(NewExecCommand(opts, stdout))
	cmd.AddCommand(NewCountCommand(opts, stdout))
	cmd.AddCommand(NewCheckCommand(opts, stdout))

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

// load merges flags, environment and config file into o.Config.
func (o *RootOptions) load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading configuration file %q: %w", file, err)
		}
		// Config files use snake_case keys.
		for _, key := range []string{"log-level", "sharing-table", "success-code", "read-all"} {
			v.RegisterAlias(strings.ReplaceAll(key, "-", "_"), key)
		}
	}

	o.Config = Config{
		DSN:          v.GetString("dsn"),
		LogLevel:     v.GetString("log-level"),
		SharingTable: v.GetString("sharing-table"),
		SuccessCode:  v.GetString("success-code"),
		Schema:       v.GetString("schema"),
		User:         v.GetString("user"),
		Read:         v.GetStringSlice("read"),
		ReadAll:      v.GetStringSlice("read-all"),
	}

	level, err := logrus.ParseLevel(o.Config.LogLevel)
	if err != nil {
		return err
	}
	o.Log.SetLevel(level)
	return nil
}

// Registry loads the configured schema document.
func (o *RootOptions) Registry() (*schema.Memory, error) {
	if o.Config.Schema == "" {
		return nil, fmt.Errorf("no schema document configured")
	}
	f, err := os.Open(o.Config.Schema)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return schema.LoadYAML(f)
}

// Access returns the caller identity, or nil when no user is configured.
func (o *RootOptions) Access(reg schema.Registry) (recql.Access, error) {
	if o.Config.User == "" {
		return nil, nil
	}
	access := recql.NewStaticAccess(o.Config.User)
	for _, name := range o.Config.Read {
		t, ok := reg.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("read grant: %w: %s", schema.ErrUnknownType, name)
		}
		access.GrantRead(t.ID)
	}
	for _, name := range o.Config.ReadAll {
		t, ok := reg.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("read-all grant: %w: %s", schema.ErrUnknownType, name)
		}
		access.GrantReadAll(t.ID)
	}
	return access, nil
}

// Renderer builds the PostgreSQL renderer for the configuration.
func (o *RootOptions) Renderer() *postgres.Renderer {
	return postgres.New(postgres.WithSharingTable(o.Config.SharingTable))
}

// Criteria loads the schema and the query document at path.
func (o *RootOptions) Criteria(path string) (*schema.Memory, *recql.Criteria, error) {
	reg, err := o.Registry()
	if err != nil {
		return nil, nil, err
	}
	access, err := o.Access(reg)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	doc, err := DecodeQuery(f)
	if err != nil {
		return nil, nil, err
	}
	c, err := doc.Criteria(reg, access)
	if err != nil {
		return nil, nil, err
	}
	return reg, c, nil
}
