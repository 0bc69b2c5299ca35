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

const (
	defaultCompression = "gzip"
)

func dumpCmd(passedExecs execs, cmdConfig *cmdConfiguration) (*cobra.Command, error) {
	if cmdConfig == nil {
		return nil, fmt.Errorf("cmdConfig is nil")
	}
	var v *viper.Viper
	var cmd = &cobra.Command{
		Use:   "dump",
		Short: "dump one or more schemas",
		Long: `Dump the named schemas to a local directory. DDL for every object is
		written alongside row data split into per-chunk files; a manifest ties the
		directory together. A partial dump can be resumed by running the same
		command against the same directory.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdConfig.logger.Debug("starting dump")
			ctx := cmd.Context()

			dir := v.GetString("dir")
			if dir == "" {
				return fmt.Errorf("no dump directory specified")
			}
			schemas := v.GetStringSlice("schemas")
			if len(schemas) == 0 && cmdConfig.configuration != nil {
				schemas = cmdConfig.configuration.Dump.Schemas
			}
			// make this slice nil if it's empty, so it is consistent; used mainly for test consistency
			if len(schemas) == 0 {
				schemas = nil
			}
			excludeTables := v.GetStringSlice("exclude-tables")
			if len(excludeTables) == 0 && cmdConfig.configuration != nil {
				excludeTables = cmdConfig.configuration.Dump.ExcludeTables
			}
			if len(excludeTables) == 0 {
				excludeTables = nil
			}
			events := v.GetBool("events")
			if !v.IsSet("events") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.Events != nil {
				events = *cmdConfig.configuration.Dump.Events
			}
			routines := v.GetBool("routines")
			if !v.IsSet("routines") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.Routines != nil {
				routines = *cmdConfig.configuration.Dump.Routines
			}
			compatibility := v.GetStringSlice("compatibility")
			if len(compatibility) == 0 && cmdConfig.configuration != nil {
				compatibility = cmdConfig.configuration.Dump.Compatibility
			}
			if len(compatibility) == 0 {
				compatibility = nil
			}
			targetMode := v.GetBool("target-mode")
			if !v.IsSet("target-mode") && cmdConfig.configuration != nil {
				targetMode = cmdConfig.configuration.Dump.TargetMode
			}
			compressionAlgo := v.GetString("compression")
			if !v.IsSet("compression") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.Compression != "" {
				compressionAlgo = cmdConfig.configuration.Dump.Compression
			}
			chunkSize := v.GetInt64("chunk-size")
			if !v.IsSet("chunk-size") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.ChunkSize != 0 {
				chunkSize = cmdConfig.configuration.Dump.ChunkSize
			}
			workers := v.GetInt("workers")
			if !v.IsSet("workers") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.Workers != 0 {
				workers = cmdConfig.configuration.Dump.Workers
			}
			retries := v.GetInt("retries")
			if !v.IsSet("retries") && cmdConfig.configuration != nil && cmdConfig.configuration.Dump.Retries != 0 {
				retries = cmdConfig.configuration.Dump.Retries
			}

			dumpOpts := core.DumpOptions{
				DBConn:        cmdConfig.dbconn,
				Dir:           dir,
				Schemas:       schemas,
				ExcludeTables: excludeTables,
				Events:        events,
				Routines:      routines,
				Compatibility: compatibility,
				TargetMode:    targetMode,
				Compression:   compressionAlgo,
				ChunkSize:     chunkSize,
				Workers:       workers,
				Retries:       retries,
				FailFast:      v.GetBool("fail-fast"),
				DryRun:        v.GetBool("dry-run"),
				Run:           uuid.New(),
			}

			var executor execs = &core.Executor{}
			if passedExecs != nil {
				executor = passedExecs
			}
			executor.SetLogger(cmdConfig.logger)

			results, err := executor.Dump(ctx, dumpOpts)
			if err != nil {
				return fmt.Errorf("error running dump: %w", err)
			}
			if results.Failed() {
				return fmt.Errorf("dump %s: %d unit(s) failed", results.State, len(results.Failures))
			}
			cmdConfig.logger.Info("Dump complete")
			return nil
		},
	}

	v = viper.New()
	v.SetEnvPrefix("porter_dump")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.String("dir", "", "local directory the dump is written to; created if missing, resumed if it already holds a checkpoint")

	flags.StringSlice("schemas", []string{}, "names of schemas to dump, at least one required")

	flags.StringSlice("exclude-tables", []string{}, "tables to exclude from the dump, each in the form schema.table")

	flags.Bool("events", true, "include scheduled events in the dump")

	flags.Bool("routines", true, "include stored procedures and functions in the dump")

	flags.StringSlice("compatibility", []string{}, "compatibility rewrites to apply to DDL. Supported are: force_innodb, strip_definers, strip_tablespaces, strip_index_options")

	flags.Bool("target-mode", false, "enable every compatibility rewrite and record the minimum loadable server version in the manifest")

	flags.String("compression", defaultCompression, "compression to use for row data. Supported are: gzip, zstd, none")

	flags.Int64("chunk-size", core.DefaultChunkSize, "approximate rows per data chunk file")

	flags.Int("workers", scheduler.DefaultWorkers, "number of units transferred in parallel")

	flags.Int("retries", scheduler.DefaultRetries, "attempts per unit before it is recorded as failed")

	flags.Bool("fail-fast", false, "stop the run on the first failed unit instead of continuing with the rest")

	flags.Bool("dry-run", false, "enumerate and plan only, write nothing")

	return cmd, nil
}
