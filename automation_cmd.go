package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Run or inspect the inactive-server automation",
}

var automationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the rules once and execute the resulting actions",
	Long: `Evaluate every registered server against the rule table and stop or restart the
ones that are due. Intended for an external cron when the built-in schedule is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.automation.RunCheck(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var automationSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the per-category summary without executing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		summary, err := a.automation.Summary()
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	automationCmd.AddCommand(automationRunCmd, automationSummaryCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
