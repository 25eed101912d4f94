package report

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dcov/cmd/util"
	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/covstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	coverageStore *covstore.Store

	// ReportCommands represents the report command group
	ReportCommands = &cobra.Command{
		Use:               "report",
		Short:             "Save, show and clear coverage reports",
		PersistentPreRunE: setupCoverageStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the report command
	util.SetupRPCClientFlags(ReportCommands)

	key := "shard"
	ReportCommands.PersistentFlags().Int(key, 100, util.WrapString("ID of the store shard holding the coverage records"))

	key = "lock-shard"
	ReportCommands.PersistentFlags().Int(key, 0, util.WrapString("ID of a lock manager shard. If set, records are merged under a per-record lock instead of compare-and-swap"))

	key = "lock-wait"
	ReportCommands.PersistentFlags().Duration(key, covstore.DefaultLockWait, util.WrapString("How long a save waits for a record lock"))

	key = "namespace"
	ReportCommands.PersistentFlags().String(key, "", util.WrapString("Namespace isolating the records of one application (must not contain '.')"))

	key = "type"
	ReportCommands.PersistentFlags().String(key, string(coverage.DefaultType), util.WrapString("Coverage type (eager_loading, runtime; merged for reads)"))

	key = "ttl"
	ReportCommands.PersistentFlags().Uint64(key, 0, util.WrapString("Seconds after which saved records expire (0 = never)"))

	key = "root-paths"
	ReportCommands.PersistentFlags().String(key, "", util.WrapString("Comma-separated list of root paths stripped from reported file paths (e.g. /app/)"))

	key = "max-retries"
	ReportCommands.PersistentFlags().Int(key, covstore.DefaultMaxRetries, util.WrapString("Compare-and-swap attempts per file before a save fails"))

	ReportCommands.AddCommand(saveCmd)
	ReportCommands.AddCommand(showCmd)
	ReportCommands.AddCommand(clearCmd)
	ReportCommands.AddCommand(clearFileCmd)
	ReportCommands.AddCommand(benchCmd)
}

// setupCoverageStore creates the coverage store on top of the configured shards
func setupCoverageStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	kv, err := util.NewStoreClient(util.GetShardID())
	if err != nil {
		return err
	}

	opts := []covstore.Option{
		covstore.WithNamespace(viper.GetString("namespace")),
		covstore.WithTTL(viper.GetUint64("ttl")),
		covstore.WithMaxRetries(viper.GetInt("max-retries")),
	}

	if roots := splitList(viper.GetString("root-paths")); len(roots) > 0 {
		opts = append(opts, covstore.WithPathResolver(coverage.PathResolver{RootPaths: roots}))
	}

	if lockShard := viper.GetUint64("lock-shard"); lockShard != 0 {
		locks, err := util.NewLockClient(lockShard)
		if err != nil {
			return err
		}
		opts = append(opts, covstore.WithRecordLocks(locks), covstore.WithLockWait(viper.GetDuration("lock-wait")))
	}

	coverageStore, err = covstore.New(kv, opts...)
	return err
}

// readType returns the type given by the --type flag
func readType() (coverage.Type, error) {
	return coverage.ParseType(viper.GetString("type"))
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format(time.DateTime)
}
