package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dataporter/mysql-porter/pkg/core"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

func loadCmd(passedExecs execs, cmdConfig *cmdConfiguration) (*cobra.Command, error) {
	if cmdConfig == nil {
		return nil, fmt.Errorf("cmdConfig is nil")
	}
	var v *viper.Viper
	var cmd = &cobra.Command{
		Use:   "load",
		Short: "load a dump into a target server",
		Long: `Load a previously written dump directory into a target server. Schema
		objects are applied in dependency order before any row data; a partial load
		can be resumed by running the same command against the same directory.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdConfig.logger.Debug("starting load")
			ctx := cmd.Context()

			dir := v.GetString("dir")
			if dir == "" {
				return fmt.Errorf("no dump directory specified")
			}
			workers := v.GetInt("workers")
			if !v.IsSet("workers") && cmdConfig.configuration != nil && cmdConfig.configuration.Load.Workers != 0 {
				workers = cmdConfig.configuration.Load.Workers
			}
			retries := v.GetInt("retries")
			if !v.IsSet("retries") && cmdConfig.configuration != nil && cmdConfig.configuration.Load.Retries != 0 {
				retries = cmdConfig.configuration.Load.Retries
			}

			loadOpts := core.LoadOptions{
				DBConn:   cmdConfig.dbconn,
				Dir:      dir,
				Workers:  workers,
				Retries:  retries,
				FailFast: v.GetBool("fail-fast"),
				Run:      uuid.New(),
			}

			var executor execs = &core.Executor{}
			if passedExecs != nil {
				executor = passedExecs
			}
			executor.SetLogger(cmdConfig.logger)

			results, err := executor.Load(ctx, loadOpts)
			if err != nil {
				return fmt.Errorf("error running load: %w", err)
			}
			if results.Failed() {
				return fmt.Errorf("load %s: %d unit(s) failed", results.State, len(results.Failures))
			}
			cmdConfig.logger.Info("Load complete")
			return nil
		},
	}

	v = viper.New()
	v.SetEnvPrefix("porter_load")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.String("dir", "", "local directory holding the dump to load")

	flags.Int("workers", scheduler.DefaultWorkers, "number of units applied in parallel within each phase")

	flags.Int("retries", scheduler.DefaultRetries, "attempts per unit before it is recorded as failed")

	flags.Bool("fail-fast", false, "stop the run on the first failed unit instead of continuing with the rest")

	return cmd, nil
}
