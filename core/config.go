package core

import (
	"strings"
	"time"
)

// FlowConfig configures the encrypted flow-exchange endpoint. The endpoint
// must differ from the webhook endpoint; Build treats a collision as a
// fatal configuration error.
type FlowConfig struct {
	Endpoint           string `koanf:"endpoint" mapstructure:"endpoint"`
	PrivateKey         string `koanf:"private_key" mapstructure:"private_key"`
	PrivateKeyPassword string `koanf:"private_key_password" mapstructure:"private_key_password"`
	HandleHealthCheck  bool   `koanf:"handle_health_check" mapstructure:"handle_health_check"`
	AcknowledgeErrors  bool   `koanf:"acknowledge_errors" mapstructure:"acknowledge_errors"`
}

type Config struct {
	AppID           string        `koanf:"app_id" mapstructure:"app_id"`
	AppSecret       string        `koanf:"app_secret" mapstructure:"app_secret"`
	PhoneNumberID   string        `koanf:"phone_number_id" mapstructure:"phone_number_id"`
	VerifyToken     string        `koanf:"verify_token" mapstructure:"verify_token"`
	WebhookEndpoint string        `koanf:"webhook_endpoint" mapstructure:"webhook_endpoint"`
	CallbackURL     string        `koanf:"callback_url" mapstructure:"callback_url"`
	VerifyTimeout   time.Duration `koanf:"verify_timeout" mapstructure:"verify_timeout"`
	Fields          []string      `koanf:"fields" mapstructure:"fields"`
	FilterUpdates   bool          `koanf:"filter_updates" mapstructure:"filter_updates"`
	VerifySignature bool          `koanf:"verify_signature" mapstructure:"verify_signature"`
	Flow            FlowConfig    `koanf:"flow" mapstructure:"flow"`
}

func DefaultConfig() Config {
	return Config{
		WebhookEndpoint: "/",
		FilterUpdates:   true,
		Flow: FlowConfig{
			HandleHealthCheck: true,
			AcknowledgeErrors: true,
		},
	}
}

// Validate checks structural consistency. Presence requirements that only
// apply once serving starts (verify token, flow key material) are enforced
// by Build, so a default config stays valid for layering.
func (c Config) Validate() error {
	if strings.TrimSpace(c.WebhookEndpoint) == "" {
		return ConfigurationError("core: webhook_endpoint is required", nil)
	}
	flowEndpoint := normalizeEndpointPath(c.Flow.Endpoint)
	if flowEndpoint != "" && flowEndpoint == normalizeEndpointPath(c.WebhookEndpoint) {
		return ConfigurationError("core: flow endpoint cannot be the same as the webhook endpoint", map[string]any{
			"endpoint": flowEndpoint,
		})
	}
	if strings.TrimSpace(c.CallbackURL) != "" {
		if strings.TrimSpace(c.AppID) == "" || strings.TrimSpace(c.AppSecret) == "" {
			return ConfigurationError(
				"core: registering a callback URL requires app_id and app_secret",
				map[string]any{"callback_url": c.CallbackURL},
			)
		}
	}
	if c.VerifyTimeout < 0 {
		return ConfigurationError("core: verify_timeout cannot be negative", nil)
	}
	return nil
}

// normalizeEndpointPath mirrors the leading-slash normalization the route
// binders apply, so validation compares the paths that would actually bind.
func normalizeEndpointPath(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}
