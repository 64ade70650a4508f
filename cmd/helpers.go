package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crestline-networks/circuit-cli/internal/arin"
	"github.com/crestline-networks/circuit-cli/internal/config"
	"github.com/crestline-networks/circuit-cli/internal/enrich"
	"github.com/crestline-networks/circuit-cli/internal/match"
	"github.com/crestline-networks/circuit-cli/internal/provider"
	"github.com/crestline-networks/circuit-cli/internal/store"
	"github.com/crestline-networks/circuit-cli/pkg/meraki"
	"github.com/crestline-networks/circuit-cli/pkg/rdap"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "circuits.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initMeraki() (meraki.Client, error) {
	if cfg.Meraki.Key == "" {
		return nil, eris.New("meraki API key is required (CIRCUIT_MERAKI_KEY)")
	}
	if cfg.Meraki.OrgID == "" {
		return nil, eris.New("meraki org ID is required (CIRCUIT_MERAKI_ORG_ID)")
	}
	return meraki.NewClient(cfg.Meraki.Key, cfg.Meraki.OrgID,
		meraki.WithBaseURL(cfg.Meraki.BaseURL),
		meraki.WithTimeout(time.Duration(cfg.Meraki.TimeoutSecs)*time.Second),
	), nil
}

func initNormalizer(matchCfg config.MatchConfig) (*provider.Normalizer, error) {
	var (
		rules []provider.Rule
		err   error
	)
	if matchCfg.ProviderTablePath != "" {
		rules, err = provider.LoadRules(matchCfg.ProviderTablePath)
	} else {
		rules, err = provider.DefaultRules()
	}
	if err != nil {
		return nil, eris.Wrap(err, "load provider rules")
	}
	return provider.New(rules, matchCfg.ProviderThreshold), nil
}

// initEngine wires the full reconciliation chain: normalizer, ownership
// resolver (cache warmed from the store), matcher, and flip detector.
func initEngine(ctx context.Context, st store.Store) (*enrich.Engine, error) {
	norm, err := initNormalizer(cfg.Match)
	if err != nil {
		return nil, err
	}

	cache := arin.NewCache(st)
	if err := cache.Warm(ctx); err != nil {
		return nil, eris.Wrap(err, "warm ownership cache")
	}

	limiter := rdap.NewAdaptiveLimiter(
		time.Duration(cfg.RDAP.MinDelayMS)*time.Millisecond,
		time.Duration(cfg.RDAP.MaxDelayMS)*time.Millisecond,
		cfg.RDAP.BackoffMul,
		cfg.RDAP.DecayAfter,
	)
	rdapClient := rdap.NewClient(
		rdap.WithBaseURL(cfg.RDAP.BaseURL),
		rdap.WithLimiter(limiter),
		rdap.WithMaxRetries(cfg.RDAP.MaxRetries),
		rdap.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RDAP.TimeoutSecs) * time.Second}),
	)
	resolver := arin.NewResolver(cache, rdapClient,
		arin.WithDDNS(cfg.DDNS.Domain, time.Duration(cfg.DDNS.TimeoutSecs)*time.Second))

	matcher := match.NewDsrMatcher(norm, cfg.Match.ProviderThreshold)
	flips := match.NewFlipDetector(matcher, cfg.Match.FlipThreshold)

	return enrich.NewEngine(norm, resolver, matcher, flips), nil
}
