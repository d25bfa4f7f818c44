// Package cli implements deployctl, the operator command line for the
// management API.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pandeptwidyaop/deploy-manager/internal/logging"
	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
)

const envPrefix = "DEPLOY_MANAGER"

// app is the state shared by every command of one root.
type app struct {
	v       *viper.Viper
	cfgFile string
	now     func() time.Time
}

// Execute runs deployctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the deployctl command tree. Settings resolve from
// flags, then DEPLOY_MANAGER_* variables, then ~/.deploy-manager.yaml.
func NewRootCommand() *cobra.Command {
	return newRootCommand(time.Now)
}

func newRootCommand(now func() time.Time) *cobra.Command {
	a := &app{v: viper.New(), now: now}

	root := &cobra.Command{
		Use:           "deployctl",
		Short:         "Build and restore deployable instances",
		Long:          "deployctl talks to a deploy-manager server to inspect instances, run builds and restore backups.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.deploy-manager.yaml)")
	flags.String("url", "http://localhost:8080/manage", "management API base URL")
	flags.String("token", "", "API token")
	flags.Duration("timeout", 30*time.Minute, "request timeout; builds wait for the job to finish")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	for _, name := range []string{"url", "token", "timeout", "log-level"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.instancesCommand(),
		a.restCommand(),
		a.buildCommand(),
		a.restoreCommand(),
		a.previewCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".deploy-manager")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().
		Level(logging.ParseLevel(a.v.GetString("log-level")))

	if used := a.v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", filepath.Clean(used)).Msg("using config file")
	}
	return nil
}

func (a *app) client() *manage.Client {
	return manage.New(
		a.v.GetString("url"),
		manage.WithToken(a.v.GetString("token")),
		manage.WithTimeout(a.v.GetDuration("timeout")),
	)
}
