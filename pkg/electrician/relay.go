package electrician

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
)

// Envelope is one SDU on its way to the relay. It is the relay's wire type,
// so receivers see where each SDU came from.
type Envelope struct {
	Topic   string            `json:"topic"`
	IPCP    uint16            `json:"ipcp"`
	Port    int32             `json:"port"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

// Publisher is the narrow surface shim-relay instances need.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close()
}

// noopPublisher drops everything; used when no relay target is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Envelope) error { return nil }
func (noopPublisher) Close()                                  {}

// NewNoopPublisher returns a Publisher that accepts and discards envelopes.
func NewNoopPublisher() Publisher { return noopPublisher{} }

type forwardPublisher struct {
	submit func(context.Context, Envelope) error
	stop   func()
}

// NewForwardPublisher builds Wire[Envelope] -> ForwardRelay[Envelope] and starts
// both. Without targets it returns a no-op publisher.
func NewForwardPublisher(ctx context.Context, o RelayOptions) (Publisher, error) {
	if len(o.Targets) == 0 {
		return noopPublisher{}, nil
	}

	logger := builder.NewLogger(builder.LoggerWithDevelopment(false))
	wire := builder.NewWire[Envelope](ctx, builder.WireWithLogger[Envelope](logger))

	perf := builder.NewPerformanceOptions(o.CompressSnappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(o.EncryptAESGCM, builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(
		o.TLSEnable,
		o.TLSClientCrt, o.TLSClientKey, o.TLSCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	var relayStart func(context.Context) error
	var relayStop func()

	if o.oauthEnabled() {
		authOpts := builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if o.OAuthJWKS != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(o.OAuthIssuer, o.OAuthJWKS, []string{}, o.OAuthScopes, 300),
			)
		}
		authHTTP := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS13,
					MaxVersion:         tls.VersionTLS13,
					InsecureSkipVerify: o.InsecureTLS, // dev only
				},
			},
		}
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			o.OAuthIssuer, o.OAuthClientID, o.OAuthSecret, o.OAuthScopes, o.OAuthLeeway, authHTTP,
		)
		relay := builder.NewForwardRelay[Envelope](
			ctx,
			builder.ForwardRelayWithLogger[Envelope](logger),
			builder.ForwardRelayWithTarget[Envelope](o.Targets...),
			builder.ForwardRelayWithPerformanceOptions[Envelope](perf),
			builder.ForwardRelayWithSecurityOptions[Envelope](sec, o.AESKey),
			builder.ForwardRelayWithTLSConfig[Envelope](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[Envelope](o.StaticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[Envelope](authOpts),
			builder.ForwardRelayWithOAuthBearer[Envelope](ts),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart, relayStop = relay.Start, relay.Stop
	} else {
		relay := builder.NewForwardRelay[Envelope](
			ctx,
			builder.ForwardRelayWithLogger[Envelope](logger),
			builder.ForwardRelayWithTarget[Envelope](o.Targets...),
			builder.ForwardRelayWithPerformanceOptions[Envelope](perf),
			builder.ForwardRelayWithSecurityOptions[Envelope](sec, o.AESKey),
			builder.ForwardRelayWithTLSConfig[Envelope](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[Envelope](o.StaticHeaders),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart, relayStop = relay.Start, relay.Stop
	}

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("relay wire start: %w", err)
	}
	if err := relayStart(ctx); err != nil {
		wire.Stop()
		return nil, fmt.Errorf("forward relay start: %w", err)
	}

	return &forwardPublisher{
		submit: func(ctx context.Context, env Envelope) error { return wire.Submit(ctx, env) },
		stop: func() {
			relayStop()
			wire.Stop()
		},
	}, nil
}

// Publish submits the whole envelope. The body is copied because the relay
// sends asynchronously and the caller may reuse the SDU buffer.
func (p *forwardPublisher) Publish(ctx context.Context, env Envelope) error {
	if env.Topic == "" {
		return fmt.Errorf("relay: missing topic")
	}
	env.Body = bytes.Clone(env.Body)
	return p.submit(ctx, env)
}

func (p *forwardPublisher) Close() { p.stop() }
