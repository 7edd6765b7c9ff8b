package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/store"
)

var (
	leadsStatus string
	leadsQuery  string
	leadsLimit  int
	leadsOffset int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and manage stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally filtered by status or origin query",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.ListFilter{
			Query:  leadsQuery,
			Limit:  leadsLimit,
			Offset: leadsOffset,
		}
		if leadsStatus != "" {
			status := model.Status(strings.ToUpper(leadsStatus))
			if !status.Valid() {
				return eris.Errorf("unknown status: %s", leadsStatus)
			}
			filter.Status = status
		}

		leads, err := st.ListLeads(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tSTATUS\tSCORE\tFINAL\tCREATED")
		for _, lead := range leads {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				lead.Domain, lead.Status, lead.PreliminaryScore, lead.FinalScore,
				lead.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Print the full lead record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		lead, err := st.GetLead(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

var leadsResetCmd = &cobra.Command{
	Use:   "reset <domain>",
	Short: "Reset a lead to NEW so it runs through the pipeline again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ResetLead(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("lead %s reset to %s\n", args[0], model.StatusNew)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status")
	leadsListCmd.Flags().StringVar(&leadsQuery, "query", "", "filter by origin query substring")
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum rows")
	leadsListCmd.Flags().IntVar(&leadsOffset, "offset", 0, "rows to skip")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsResetCmd)
	rootCmd.AddCommand(leadsCmd)
}
