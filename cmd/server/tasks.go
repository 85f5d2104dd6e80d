package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <address>",
	Short: "Looks up a valuation, fetching and storing it on a miss.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		estimate, err := a.orchestrator.GetOrCreate(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(estimate)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>...",
	Short: "Scrapes property pages and records price changes.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, pageURL := range args {
			result, err := a.ingestor.Ingest(cmd.Context(), pageURL)
			if err != nil {
				a.logger.WithError(err).WithField("url", pageURL).Error("Ingest failed")
				failed++
				continue
			}
			if err := printJSON(result); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("failed to ingest %d of %d urls", failed, len(args))
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes every stored property, estimate, price and fact.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.db.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d rows\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd, ingestCmd, clearCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
