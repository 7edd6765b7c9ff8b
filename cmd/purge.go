package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeOlderThanDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old leads and expired registry cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -purgeOlderThanDays)
		leads, err := st.PurgeLeads(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		cache, err := st.DeleteExpiredRegistryCache(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("purged %d leads older than %s, %d expired cache entries\n",
			leads, cutoff.Format("2006-01-02"), cache)
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeOlderThanDays, "older-than-days", 180, "purge leads created before this many days ago")
	rootCmd.AddCommand(purgeCmd)
}
