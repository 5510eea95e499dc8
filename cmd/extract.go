package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/hire-intake/internal/slots"
)

var extractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Print the slots found in a message as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		multi, _ := cmd.Flags().GetBool("multi")
		out, err := extract(strings.Join(args, " "), multi)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().BoolP("multi", "m", false, "split the message into several job requests")
}

func extract(text string, multi bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is empty")
	}

	var v any = slots.Extract(text)
	if multi {
		jobs := slots.ExtractJobs(text)
		if jobs == nil {
			jobs = []slots.Job{}
		}
		v = jobs
	}

	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding slots: %w", err)
	}
	return string(pretty), nil
}
