package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/gesturecast/internal/config"
)

var validateConfigPath string

func init() {
	validateConfigCmd.Flags().StringVar(&validateConfigPath, "config", "", "path to the YAML configuration file (required)")
	_ = validateConfigCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(validateConfigCmd)
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate a configuration file without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config OK: detector.max_hands=%d broadcaster.port=%d state_machine.cooldown_ms=%d\n",
			cfg.Detector.MaxHands, cfg.Broadcaster.Port, cfg.StateMachine.CooldownMS)
		return nil
	},
}
