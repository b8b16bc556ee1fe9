package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pineking/kaldi-git/internal/config"
	"github.com/pineking/kaldi-git/internal/queue"
	"github.com/pineking/kaldi-git/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	debugMode bool
	quietMode bool
)

var rootCmd = &cobra.Command{
	Use:   "dispatch [scheduler-flags] [NAME=START:END | NAME=N] <log-path> <command> [args...]",
	Short: "Submit a command to the batch queue and wait for its per-task results.",
	Long: `dispatch submits a command (optionally as an array of indexed tasks) to an
SGE-style batch queue, then waits for one completion marker per task and
recovers each task's exit status from its log file.

Scheduler flags before the log path are passed through to qsub; double-dash
options (e.g. --mem 4G, --gpu 1, --max-jobs-run 10) are translated via the
queue configuration file. An array range NAME=START:END runs one task per
index, with NAME substituted into the log path and command.`,
	Example: `  dispatch exp/log/train.log steps/train.sh data/train
  dispatch --mem 4G JOB=1:20 exp/log/align.JOB.log align.sh JOB.fst
  dispatch -sync y --config conf/cluster.conf exp/log/decode.log decode.sh`,
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	// The dispatcher surface interleaves qsub flags, abstract options, and
	// an array token ahead of the positionals; cobra's parser would eat
	// them, so the raw argv goes straight to the option resolver.
	DisableFlagParsing: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDefaults()
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}
		config.LoadFromViper()

		if debugMode || config.Global.Debug {
			utils.DebugMode = true
			config.Global.Debug = true
		}
		if quietMode || config.Global.Quiet {
			utils.QuietMode = true
			config.Global.Quiet = true
		}
	},

	RunE: runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	// Leading mode flags belong to the dispatcher itself, not the queue.
	for len(args) > 0 {
		switch args[0] {
		case "--debug":
			utils.DebugMode = true
			config.Global.Debug = true
			args = args[1:]
			continue
		case "--quiet":
			utils.QuietMode = true
			config.Global.Quiet = true
			args = args[1:]
			continue
		case "-h", "--help":
			return cmd.Help()
		case "--version":
			fmt.Printf("dispatch version %s\n", config.VERSION)
			return nil
		}
		break
	}

	req, err := queue.ParseArgs(args)
	if err != nil {
		if queue.IsUsageError(err) {
			_ = cmd.Usage()
		}
		return err
	}

	confPath, explicit := config.Global.QueueConf, false
	if req.ConfPath != "" {
		confPath, explicit = req.ConfPath, true
	}
	qconf, err := queue.LoadConf(confPath, explicit)
	if err != nil {
		return err
	}

	result, err := queue.NewDispatcher(qconf).Run(req)
	if err != nil {
		return err
	}
	if !result.Success() {
		return errors.New(result.Summary())
	}
	utils.PrintSuccess("%s", result.Summary())
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		utils.PrintError("%v", err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVar(&quietMode, "quiet", false, "Suppress informational output")

	// Underscores and dashes are interchangeable in flag names, matching the
	// normalization applied to the abstract queue options.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}
