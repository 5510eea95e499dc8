package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/ai"
	"github.com/spigell/hire-intake/internal/ai/gemini"
	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/logger"
	"github.com/spigell/hire-intake/internal/metrics"
	"github.com/spigell/hire-intake/internal/prompts"
	"github.com/spigell/hire-intake/internal/secrets"
	"github.com/spigell/hire-intake/internal/server"
	"github.com/spigell/hire-intake/internal/store"
)

// runtime holds the collaborators shared by the commands.
type runtime struct {
	config   *Config
	logger   *zap.Logger
	store    store.Store
	prompts  *prompts.Loader
	engine   *intake.Engine
	registry *prometheus.Registry
	closers  []func()
}

// setup builds the runtime from configuration. driver overrides
// store.driver when set.
func setup(ctx context.Context, driver string, logOpts ...logger.Option) (*runtime, error) {
	logOpts = append([]logger.Option{logger.WithService(app)}, logOpts...)
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), logOpts...)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		config = &Config{}
	}
	normalizeConfig(config)
	if driver != "" {
		config.Store.Driver = driver
	}

	logger.Info("starting the hire-intake", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rt := &runtime{config: config, logger: logger}

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if rt.store, err = rt.newStore(ctx); err != nil {
		rt.close()
		return nil, err
	}
	if rt.prompts, err = rt.newPrompts(ctx); err != nil {
		rt.close()
		return nil, err
	}

	rewriter, err := newRewriter(ctx, config.AI, logger)
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.engine = intake.New(intake.Deps{
		Store:    rt.store,
		Rewriter: rewriter,
		Prompts:  rt.prompts,
		Metrics:  metrics.NewCollectors(rt.registry),
		Logger:   logger.Named("intake"),
	}, intake.Config{
		HistoryLimit:   config.Intake.HistoryLimit,
		RewriteTimeout: config.AI.Timeout,
		Tone:           config.AI.Tone,
	})
	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	_ = rt.logger.Sync()
}

func (rt *runtime) newStore(ctx context.Context) (store.Store, error) {
	cfg := rt.config.Store
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		rt.logger.Info("using in-memory conversation store")
		return store.NewMemory(), nil
	case "redis":
		r := store.NewRedis(store.NewRedisClient(cfg.Redis), cfg.Redis)
		rt.closers = append(rt.closers, func() { _ = r.Close() })
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Address, err)
		}
		rt.logger.Info("using redis conversation store", zap.String("address", cfg.Redis.Address))
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// newPrompts serves built-in prompts, overlaid by object storage when it is
// configured.
func (rt *runtime) newPrompts(ctx context.Context) (*prompts.Loader, error) {
	cfg := rt.config.Prompts

	chain := prompts.Chain{}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		key, err := secrets.Load(secrets.Source{
			Name:  "prompt storage service key",
			Value: cfg.ServiceKey,
			File:  cfg.ServiceKeyFile,
			Env:   "PROMPTS_SERVICE_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set prompts.service-key-file or PROMPTS_SERVICE_KEY)", err)
		}
		chain = append(chain, prompts.NewObjectStorage(cfg.BaseURL, cfg.Bucket, key, rt.logger.Named("prompts")))
	}
	chain = append(chain, prompts.Builtin())

	loader, err := prompts.NewLoader(chain, cfg.Config, rt.logger.Named("prompts"))
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, loader.Close)

	if len(cfg.Warm) > 0 {
		for label, status := range loader.Warm(ctx, cfg.Warm) {
			rt.logger.Info("warmed prompt", zap.String("label", label), zap.String("status", status))
		}
	}
	return loader, nil
}

// newRewriter returns nil when rewriting is disabled.
func newRewriter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Rewriter, error) {
	if !cfg.Enabled {
		log.Info("reply rewriting is disabled")
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.Options{
		Model:        cfg.Gemini.Model,
		Temperature:  gemini.RewriteTemperature,
		MaxLogLength: cfg.Gemini.MaxLogLength,
		Logger:       log.Named("gemini"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini generator: %w", err)
	}

	log.Info("reply rewriting is enabled", logger.CommonFields("gemini", generator.Model())...)
	return gemini.NewRewriter(generator, log.Named("rewriter")), nil
}

// normalizeConfig fills sections missing from an unusual config file.
func normalizeConfig(c *Config) {
	if c.Server == nil {
		c.Server = &server.Config{}
	}
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Prompts == nil {
		c.Prompts = &PromptsConfig{}
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.AI.Gemini == nil {
		c.AI.Gemini = &GeminiConfig{}
	}
	if c.Intake == nil {
		c.Intake = &IntakeConfig{}
	}
}

// redacted returns a copy of c safe to log.
func redacted(c *Config) Config {
	out := *c
	if c.Server != nil {
		s := *c.Server
		s.APIKey = mask(s.APIKey)
		out.Server = &s
	}
	if c.Store != nil {
		st := *c.Store
		st.Redis.Password = mask(st.Redis.Password)
		out.Store = &st
	}
	if c.Prompts != nil {
		p := *c.Prompts
		p.ServiceKey = mask(p.ServiceKey)
		out.Prompts = &p
	}
	if c.AI != nil && c.AI.Gemini != nil {
		a := *c.AI
		g := *c.AI.Gemini
		g.APIKey = mask(g.APIKey)
		a.Gemini = &g
		out.AI = &a
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
