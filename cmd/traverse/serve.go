package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/traverse/pkg/discovery"
	"github.com/backkem/traverse/pkg/stack"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const software = "traverse"

type serveOptions struct {
	port      int
	advertise bool
	instance  string
	metrics   string
}

func newServeCmd(opts *options) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer STUN Binding requests until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, so)
		},
	}

	cmd.Flags().IntVar(&so.port, "port", transport.DefaultPort, "UDP port to listen on")
	cmd.Flags().BoolVar(&so.advertise, "advertise", false, "advertise the server over mDNS")
	cmd.Flags().StringVar(&so.instance, "instance", "", "mDNS instance name (random if empty)")
	cmd.Flags().StringVar(&so.metrics, "metrics", "", "serve Prometheus metrics on this address")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *options, so *serveOptions) error {
	registry := prometheus.NewRegistry()

	st, err := stack.Listen(stack.Config{
		Config:         opts.resolver,
		RequestHandler: stack.BindingHandler,
		Registerer:     registry,
		LoggerFactory:  opts.loggerFactory,
	}, transport.ManagerConfig{
		Port:          so.port,
		LoggerFactory: opts.loggerFactory,
	})
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer st.Close()

	for _, a := range st.LocalAddrs() {
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", a)
	}

	g, ctx := errgroup.WithContext(ctx)

	if so.advertise {
		adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Port:          so.port,
			LoggerFactory: opts.loggerFactory,
		})
		if err != nil {
			return err
		}
		txt := discovery.ServerTXT{Software: software, Transports: []string{"udp"}}
		g.Go(func() error {
			return adv.AdvertiseUntil(ctx, discovery.ServiceTypeSTUN, so.instance, txt)
		})
	}

	if so.metrics != "" {
		srv := &http.Server{
			Addr:              so.metrics,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
