package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dataporter/mysql-porter/pkg/config"
	"github.com/dataporter/mysql-porter/pkg/core"
	"github.com/dataporter/mysql-porter/pkg/database"
)

type execs interface {
	SetLogger(logger *log.Logger)
	GetLogger() *log.Logger
	Dump(ctx context.Context, opts core.DumpOptions) (core.Results, error)
	Load(ctx context.Context, opts core.LoadOptions) (core.Results, error)
}

type subCommand func(execs, *cmdConfiguration) (*cobra.Command, error)

var subCommands = []subCommand{dumpCmd, loadCmd}

type cmdConfiguration struct {
	dbconn        database.Connection
	configuration *config.Config
	logger        *log.Logger
}

const (
	defaultPort = 3306
)

func rootCmd(execs execs) (*cobra.Command, error) {
	var (
		v         *viper.Viper
		cmd       *cobra.Command
		cmdConfig = &cmdConfiguration{}
	)
	cmd = &cobra.Command{
		Use:   "mysql-porter",
		Short: "dump or load one or more mysql-compatible schemas",
		Long: `Dump one or more mysql-compatible schemas to a local dump directory,
		or load such a dump directory into a target server. Objects and row chunks
		are transferred in parallel; an interrupted run resumes from its checkpoint
		when pointed at the same directory.`,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			bindFlags(cmd, v)
			var logger = log.New()
			logLevel := v.GetInt("verbose")
			debugSet := v.IsSet("debug")
			if !v.IsSet("verbose") && (v.GetBool("debug") || (debugSet && v.GetString("debug") == "true")) {
				logLevel = 1
			}

			// the config file carries structure the flat flags cannot,
			// so it is parsed by hand rather than through viper
			if configFilePath := v.GetString("config-file"); configFilePath != "" {
				f, err := os.Open(configFilePath)
				if err != nil {
					return fmt.Errorf("fatal error config file: %w", err)
				}
				defer f.Close()
				actualConfig, err := config.Process(f)
				if err != nil {
					return fmt.Errorf("unable to read provided config: %w", err)
				}
				cmdConfig.configuration = actualConfig
				if !v.IsSet("verbose") && !debugSet {
					logLevel = actualConfig.LogLevel()
				}
				if actualConfig.Database.Server != "" {
					cmdConfig.dbconn.Host = actualConfig.Database.Server
				}
				if actualConfig.Database.Port != 0 {
					cmdConfig.dbconn.Port = actualConfig.Database.Port
				}
				if actualConfig.Database.Credentials.Username != "" {
					cmdConfig.dbconn.User = actualConfig.Database.Credentials.Username
				}
				if actualConfig.Database.Credentials.Password != "" {
					cmdConfig.dbconn.Pass = actualConfig.Database.Credentials.Password
				}
			}

			switch logLevel {
			case 0:
				logger.SetLevel(log.InfoLevel)
			case 1:
				logger.SetLevel(log.DebugLevel)
			default:
				logger.SetLevel(log.TraceLevel)
			}

			// CLI flag or env var overrides the config file, if set
			if dbHost := v.GetString("server"); dbHost != "" && v.IsSet("server") {
				cmdConfig.dbconn.Host = dbHost
			}
			if dbPort := v.GetInt("port"); dbPort != 0 && (v.IsSet("port") || cmdConfig.dbconn.Port == 0) {
				cmdConfig.dbconn.Port = dbPort
			}
			if dbUser := v.GetString("user"); dbUser != "" && v.IsSet("user") {
				cmdConfig.dbconn.User = dbUser
			}
			if dbPass := v.GetString("pass"); dbPass != "" && v.IsSet("pass") {
				cmdConfig.dbconn.Pass = dbPass
			}
			cmdConfig.logger = logger
			return nil
		},
	}

	v = viper.New()
	v.SetEnvPrefix("porter")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pflags := cmd.PersistentFlags()
	pflags.String("server", "", "hostname for database server")

	pflags.String("config-file", "", "config file to use, if any; individual CLI flags override config file")

	pflags.Int("port", defaultPort, "port for database server")

	pflags.String("user", "", "username for database server")

	pflags.String("pass", "", "password for database server")

	pflags.IntP("verbose", "v", 0, "set log level, 1 is debug, 2 is trace")
	pflags.Bool("debug", false, "set log level to debug, equivalent of --verbose=1; if both set, --verbose always overrides")

	for _, subCmd := range subCommands {
		if sc, err := subCmd(execs, cmdConfig); err != nil {
			return nil, err
		} else {
			cmd.AddCommand(sc)
		}
	}

	return cmd, nil
}

// Bind each cobra flag to its associated viper configuration (environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		configName := f.Name
		_ = v.BindPFlag(configName, f)
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(configName) {
			val := v.Get(configName)
			_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
		}
	})
}

// Execute primary function for cobra
func Execute() {
	rootCmd, err := rootCmd(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
