package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded config < runtime overrides
// through a go-options layer stack.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap flattens a Config into a layer map. Complete layers
// (defaults and provider-loaded configs, which cfgx already resolved) emit
// every key so an explicit false survives the merge over a true default.
// The runtime overlay stays sparse: only values that differ from the
// package defaults are emitted, so an untouched zero value never clobbers
// what the loaded config decided.
func configToLayerMap(cfg Config, complete bool) map[string]any {
	base := DefaultConfig()
	layer := map[string]any{}
	setString := func(key string, value string) {
		if complete || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setBool := func(key string, value bool, baseValue bool) {
		if complete || value != baseValue {
			layer[key] = value
		}
	}
	setString("app_id", cfg.AppID)
	setString("app_secret", cfg.AppSecret)
	setString("phone_number_id", cfg.PhoneNumberID)
	setString("verify_token", cfg.VerifyToken)
	setString("webhook_endpoint", cfg.WebhookEndpoint)
	setString("callback_url", cfg.CallbackURL)
	if complete || cfg.VerifyTimeout > 0 {
		layer["verify_timeout"] = cfg.VerifyTimeout
	}
	if complete || len(cfg.Fields) > 0 {
		layer["fields"] = append([]string(nil), cfg.Fields...)
	}
	setBool("filter_updates", cfg.FilterUpdates, base.FilterUpdates)
	setBool("verify_signature", cfg.VerifySignature, base.VerifySignature)

	flow := map[string]any{}
	setFlowString := func(key string, value string) {
		if complete || strings.TrimSpace(value) != "" {
			flow[key] = value
		}
	}
	setFlowBool := func(key string, value bool, baseValue bool) {
		if complete || value != baseValue {
			flow[key] = value
		}
	}
	setFlowString("endpoint", cfg.Flow.Endpoint)
	setFlowString("private_key", cfg.Flow.PrivateKey)
	setFlowString("private_key_password", cfg.Flow.PrivateKeyPassword)
	setFlowBool("handle_health_check", cfg.Flow.HandleHealthCheck, base.Flow.HandleHealthCheck)
	setFlowBool("acknowledge_errors", cfg.Flow.AcknowledgeErrors, base.Flow.AcknowledgeErrors)
	if len(flow) > 0 {
		layer["flow"] = flow
	}
	return layer
}
