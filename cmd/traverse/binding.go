package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/stack"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/spf13/cobra"
)

func newBindingCmd(opts *options) *cobra.Command {
	var (
		timeout   time.Duration
		keepAlive bool
	)

	cmd := &cobra.Command{
		Use:   "binding <server>",
		Short: "Ask a STUN server for this host's mapped address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := resolveServer(args[0])
			if err != nil {
				return err
			}

			st, err := stack.Listen(stack.Config{
				Config:        opts.resolver,
				LoggerFactory: opts.loggerFactory,
			}, transport.ManagerConfig{
				Bind: config.Bind{Retries: 1, Wildcard: true},
			})
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mapped, err := st.Binding(ctx, server)
			if err != nil {
				return fmt.Errorf("binding %s: %w", server, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "local:  %s\n", st.LocalAddr())
			fmt.Fprintf(out, "mapped: %s\n", mapped)

			if !keepAlive {
				return nil
			}
			// Holds the mapping open until interrupted, or returns at once
			// when keep-alives are disabled.
			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := st.KeepAlive(sigCtx, server); err != nil && sigCtx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&keepAlive, "keep-alive", false, "keep the mapping open with Binding indications until interrupted")
	return cmd
}
