package harvest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
)

// Instance metadata service (IMDSv2) surface.
const (
	DefaultMetadataURL = "http://169.254.169.254"

	metadataTokenPath    = "/latest/api/token"
	metadataLocalIPPath  = "/latest/meta-data/local-ipv4"
	metadataPublicIPPath = "/latest/meta-data/public-ipv4"

	metadataTokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
	metadataTokenHeader    = "X-aws-ec2-metadata-token"
	metadataTokenTTL       = "21600"

	// referencePort is the port the discovered addresses are parsed on.
	// Only the address takes part in mapping.
	referencePort = "9"

	// maxMetadataBody bounds metadata responses.
	maxMetadataBody = 4096
)

// DefaultDiscoveryTimeout is the connect timeout of discovery requests.
const DefaultDiscoveryTimeout = 500 * time.Millisecond

// CloudMetadataConfig configures the cloud metadata strategy.
type CloudMetadataConfig struct {
	// BaseURL of the metadata service. Defaults to DefaultMetadataURL.
	BaseURL string

	// Client performs the HTTP calls. If nil, a client with a Timeout
	// connect timeout is used.
	Client *http.Client

	// Timeout bounds connecting to the metadata service.
	// Default: DefaultDiscoveryTimeout
	Timeout time.Duration

	// Force assumes the host is a cloud instance without probing.
	Force bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// CloudMetadata learns the instance's private (face) and public (mask)
// addresses from the EC2 instance metadata service.
//
// The applicability check requests a session token; if that fails the
// strategy stays disabled. Resolution fetches both addresses with a fresh
// token. Each runs once per instance; failures are never retried.
type CloudMetadata struct {
	base   string
	client *http.Client
	force  bool
	log    logging.LeveledLogger

	applicableOnce sync.Once
	applicableDone chan struct{}
	applicable     bool

	resolveOnce sync.Once
	resolveDone chan struct{}
	result      Result
}

// NewCloudMetadata creates the strategy.
func NewCloudMetadata(cfg CloudMetadataConfig) *CloudMetadata {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMetadataURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDiscoveryTimeout
	}
	if cfg.Client == nil {
		dialer := &net.Dialer{Timeout: cfg.Timeout}
		cfg.Client = &http.Client{
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		}
	}

	c := &CloudMetadata{
		base:           strings.TrimSuffix(cfg.BaseURL, "/"),
		client:         cfg.Client,
		force:          cfg.Force,
		applicableDone: make(chan struct{}),
		resolveDone:    make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("harvest-aws")
	}
	return c
}

// Name implements Strategy.
func (c *CloudMetadata) Name() string {
	return "aws"
}

// Policy rewrites exact address matches and passes the rest through.
func (c *CloudMetadata) Policy() RewritePolicy {
	return RewritePolicy{Unmatched: PassThrough}
}

// Applicable reports whether the metadata service handed out a token. The
// lookup runs once in the background, detached from ctx, so one caller
// giving up does not poison the cached answer. A caller whose ctx ends
// first gets false without waiting.
func (c *CloudMetadata) Applicable(ctx context.Context) bool {
	if c.force {
		return true
	}
	c.applicableOnce.Do(func() {
		detached := context.WithoutCancel(ctx)
		go func() {
			defer close(c.applicableDone)
			_, err := c.token(detached)
			c.applicable = err == nil
			if c.log != nil {
				if err != nil {
					c.log.Infof("not running on EC2: %v", err)
				} else {
					c.log.Info("EC2 metadata service detected")
				}
			}
		}()
	})
	select {
	case <-c.applicableDone:
		return c.applicable
	case <-ctx.Done():
		return false
	}
}

// Resolve implements Strategy. Like Applicable, resolution runs once in the
// background and a caller whose ctx ends first gets Unavailable.
func (c *CloudMetadata) Resolve(ctx context.Context) Result {
	c.resolveOnce.Do(func() {
		detached := context.WithoutCancel(ctx)
		go func() {
			defer close(c.resolveDone)
			c.result = c.resolve(detached)
		}()
	})
	select {
	case <-c.resolveDone:
		return c.result
	case <-ctx.Done():
		return Unavailable()
	}
}

func (c *CloudMetadata) resolve(ctx context.Context) Result {
	if !c.Applicable(ctx) {
		return Unavailable()
	}
	pair, err := c.discover(ctx)
	if err != nil {
		if c.log != nil {
			c.log.Infof("EC2 address discovery failed: %v", err)
		}
		return Unavailable()
	}
	if c.log != nil {
		c.log.Infof("EC2 local %s, public %s", pair.Face.Addr(), pair.Mask.Addr())
	}
	return Resolved(pair)
}

func (c *CloudMetadata) discover(ctx context.Context) (AddressPair, error) {
	token, err := c.token(ctx)
	if err != nil {
		return AddressPair{}, err
	}

	var local, public string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		local, err = c.fetch(gctx, http.MethodGet, metadataLocalIPPath, metadataTokenHeader, token)
		return err
	})
	g.Go(func() (err error) {
		public, err = c.fetch(gctx, http.MethodGet, metadataPublicIPPath, metadataTokenHeader, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return AddressPair{}, err
	}

	face, err := parseReference(local)
	if err != nil {
		return AddressPair{}, fmt.Errorf("local address %q: %w", local, err)
	}
	mask, err := parseReference(public)
	if err != nil {
		return AddressPair{}, fmt.Errorf("public address %q: %w", public, err)
	}
	return AddressPair{Face: face, Mask: mask}, nil
}

func (c *CloudMetadata) token(ctx context.Context) (string, error) {
	return c.fetch(ctx, http.MethodPut, metadataTokenPath, metadataTokenTTLHeader, metadataTokenTTL)
}

func (c *CloudMetadata) fetch(ctx context.Context, method, path, header, value string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(header, value)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s %s: %s", ErrMetadataStatus, method, path, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// parseReference parses s as an address on the reference port.
func parseReference(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(net.JoinHostPort(s, referencePort))
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
