package harvest

import (
	"net/http"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/pion/logging"
)

// Dependencies are the runtime collaborators strategies may need beyond
// configuration.
type Dependencies struct {
	// Binder enables the STUN strategy when STUN servers are configured.
	Binder Binder

	// Net is the network used to pick routed source addresses. Defaults to
	// the host network.
	Net transport.Net

	// HTTPClient and MetadataURL override the cloud metadata endpoint.
	HTTPClient  *http.Client
	MetadataURL string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewStrategies builds the configured strategies: static mappings first,
// then cloud metadata, NAT-PMP, UPnP and STUN.
func NewStrategies(cfg config.Harvest, deps Dependencies) ([]Strategy, error) {
	out := NewStatics(cfg.StaticMappings, deps.LoggerFactory)

	if cfg.AWSEnabled || cfg.AWSForce {
		out = append(out, NewCloudMetadata(CloudMetadataConfig{
			BaseURL:       deps.MetadataURL,
			Client:        deps.HTTPClient,
			Timeout:       cfg.DiscoveryTimeout,
			Force:         cfg.AWSForce,
			LoggerFactory: deps.LoggerFactory,
		}))
	}

	if cfg.NATPMPEnabled {
		p, err := NewNATPMP(NATPMPConfig{
			Net:           deps.Net,
			Timeout:       cfg.DiscoveryTimeout,
			LoggerFactory: deps.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if cfg.UPnPEnabled {
		out = append(out, NewUPnP(UPnPConfig{LoggerFactory: deps.LoggerFactory}))
	}

	if len(cfg.STUNAddresses) > 0 && deps.Binder != nil {
		s, err := NewSTUNMapping(STUNMappingConfig{
			Binder:        deps.Binder,
			Servers:       cfg.STUNAddresses,
			Net:           deps.Net,
			LoggerFactory: deps.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}
