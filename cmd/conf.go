package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pineking/kaldi-git/internal/config"
	"github.com/pineking/kaldi-git/internal/queue"
	"github.com/pineking/kaldi-git/internal/utils"
	"github.com/spf13/cobra"
)

var confPath string

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Display the resolved queue configuration",
	Long: `Display the queue option translation rules in effect, plus the dispatcher's
own process settings (tool binaries and poll tuning).

Without --config this loads the default queue configuration; when the file is
missing the built-in fallback policy is shown.`,
	Example: `  dispatch conf
  dispatch conf --config conf/cluster.conf`,
	Run: runConf,
}

func init() {
	confCmd.Flags().StringVar(&confPath, "config", "", "Queue configuration file to inspect")
	rootCmd.AddCommand(confCmd)
}

func runConf(cmd *cobra.Command, args []string) {
	path, explicit := config.Global.QueueConf, false
	if confPath != "" {
		path, explicit = confPath, true
	}

	qconf, err := queue.LoadConf(path, explicit)
	if err != nil {
		utils.PrintError("%v", err)
		os.Exit(1)
	}

	// Structured output, no [DSP] prefix
	fmt.Println(utils.StyleTitle("Queue Configuration"))
	fmt.Printf("  Source:        %s\n", utils.StylePath(qconf.Source))
	fmt.Printf("  Standard opts: %s\n", utils.StyleCommand(strings.Join(qconf.StandardOpts, " ")))

	if defaults := qconf.Defaults(); len(defaults) > 0 {
		fmt.Println("  Defaults:")
		for _, d := range defaults {
			fmt.Printf("    %s = %s\n", utils.StyleName(d.Name), d.Value)
		}
	}

	if rules := qconf.Rules(); len(rules) > 0 {
		fmt.Println("  Rules:")
		for _, rule := range rules {
			fmt.Printf("    %s\n", utils.StyleCommand(rule))
		}
	}

	fmt.Println()
	fmt.Println(utils.StyleTitle("Dispatcher Settings"))
	fmt.Printf("  qsub binary:    %s\n", utils.StylePath(config.Global.QsubBin))
	fmt.Printf("  qstat binary:   %s\n", utils.StylePath(config.Global.QstatBin))
	fmt.Printf("  Poll interval:  %s growing x%.1f up to %s\n",
		config.Global.PollInitial, config.Global.PollGrowth, config.Global.PollMax)
	fmt.Printf("  Liveness check: every %s polls\n", utils.StyleNumber(config.Global.LivenessEvery))

	if settings, err := config.GetUserConfigPath(); err == nil {
		status := "not present, defaults in effect"
		if utils.FileExists(settings) {
			status = "loaded"
		}
		fmt.Printf("  Settings file:  %s (%s)\n", utils.StylePath(settings), status)
	}
}
