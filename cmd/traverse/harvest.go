package main

import (
	"context"
	"fmt"
	"time"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/discovery"
	"github.com/backkem/traverse/pkg/harvest"
	"github.com/backkem/traverse/pkg/stack"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/pion/transport/v3/stdnet"
	"github.com/spf13/cobra"
)

type harvestOptions struct {
	discover string
	timeout  time.Duration
}

func newHarvestCmd(opts *options) *cobra.Command {
	ho := &harvestOptions{}

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "List host candidates and the public addresses they map to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ho.timeout)
			defer cancel()
			return runHarvest(ctx, cmd, opts, ho)
		},
	}

	cmd.Flags().StringVar(&ho.discover, "discover", "", `find STUN servers in this domain ("local" for mDNS)`)
	cmd.Flags().DurationVar(&ho.timeout, "timeout", 15*time.Second, "give up after this long")
	return cmd
}

func runHarvest(ctx context.Context, cmd *cobra.Command, opts *options, ho *harvestOptions) error {
	cfg := config.LoadHarvest(opts.resolver)

	if ho.discover != "" {
		servers, err := discoverServers(ctx, opts, discovery.ServiceTypeSTUN, ho.discover)
		if err != nil {
			return fmt.Errorf("discovering STUN servers: %w", err)
		}
		cfg.STUNAddresses = append(cfg.STUNAddresses, servers...)
	}

	st, err := stack.Listen(stack.Config{
		Config:        opts.resolver,
		LoggerFactory: opts.loggerFactory,
	}, transport.ManagerConfig{
		Filter: harvest.Filter(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer st.Close()

	strategies, err := harvest.NewStrategies(cfg, harvest.Dependencies{
		Binder:        st,
		LoggerFactory: opts.loggerFactory,
	})
	if err != nil {
		return err
	}

	hosts, err := hostCandidates(st, cfg)
	if err != nil {
		return err
	}

	set := harvest.NewSet(opts.loggerFactory, strategies...)
	for _, c := range set.Harvest(ctx, hosts) {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

// hostCandidates lists the bound sockets, expanding a wildcard socket into
// the interface addresses it serves.
func hostCandidates(st *stack.Stack, cfg config.Harvest) ([]harvest.Candidate, error) {
	hosts := harvest.CandidatesFromAddrs(st.LocalAddrs())
	if len(hosts) != 1 || !hosts[0].Address.AddrPort.Addr().IsUnspecified() {
		return hosts, nil
	}
	n, err := stdnet.NewNet()
	if err != nil {
		return nil, err
	}
	return harvest.HostCandidates(n, cfg, hosts[0].Address.AddrPort.Port())
}

func discoverServers(ctx context.Context, opts *options, st discovery.ServiceType, domain string) ([]string, error) {
	m, err := discovery.NewManager(discovery.ManagerConfig{
		LoggerFactory: opts.loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.ServerAddresses(ctx, st, domain)
}
