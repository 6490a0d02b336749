package inbox

import (
	"github.com/goliatone/go-inbox/core"
)

type Config = core.Config

type RetryConfig = core.RetryConfig

type IngestConfig = core.IngestConfig

type InboundEvent = core.InboundEvent

type Envelope = core.Envelope

type ChannelMapping = core.ChannelMapping

type Principal = core.Principal

type ErrorLogEntry = core.ErrorLogEntry

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Setup builds a Service with configuration loaded from a raw value map,
// typically the application's parsed config file section.
func Setup(client any, raw map[string]any, opts ...Option) (*Service, error) {
	provider := core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(raw))
	merged := append([]Option{WithConfigProvider(provider)}, opts...)
	return New(client, core.Config{}, merged...)
}
