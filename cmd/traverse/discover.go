package main

import (
	"fmt"

	"github.com/backkem/traverse/pkg/discovery"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(opts *options) *cobra.Command {
	var (
		serviceType string
		domain      string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find STUN or TURN servers over mDNS or DNS SRV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := discovery.ParseServiceType(serviceType)
			if err != nil {
				return err
			}
			addrs, err := discoverServers(cmd.Context(), opts, st, domain)
			if err != nil {
				return err
			}
			for _, a := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceType, "type", "stun", "stun or turn")
	cmd.Flags().StringVar(&domain, "domain", "local", `domain to search ("local" for mDNS)`)
	return cmd
}
