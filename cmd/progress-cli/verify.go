package main

import (
	"fmt"

	"progress-map/internal/domain/model"
	"progress-map/internal/services/auditverify"

	"github.com/spf13/cobra"
)

// verifyCmd 校验审计链：重新计算每条记录的 chain_hash 并检查前后链接。
func (c *cli) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Integrity checks",
	}
	var (
		collection string
		asJSON     bool
	)
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Verify the hash chain of the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := auditverify.Verify(cmd.Context(), store, collection)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "collection=%s total=%d failed=%d prev_hash_failed=%d chain_hash_failed=%d\n",
					res.Collection, res.Total, res.Failed, res.PrevHashFailed, res.ChainHashFailed)
				if res.LastChainHash != "" {
					fmt.Fprintf(out, "last_chain_hash=%s\n", res.LastChainHash)
				}
				for _, f := range res.Failures {
					fmt.Fprintf(out, "FAIL #%d event=%s action=%s report=%s %s\n", f.Index, f.EventID, f.Action, f.ReportID, f.Message)
				}
			}
			if !res.OK {
				return fmt.Errorf("audit chain verification failed: %d of %d entries", res.Failed, res.Total)
			}
			return nil
		},
	}
	audit.Flags().StringVar(&collection, "collection", model.ReportCollection, "audit collection")
	audit.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.AddCommand(audit)
	return cmd
}
