package electrician

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayOptionsFromEnv(t *testing.T) {
	t.Setenv("ELECTRICIAN_TARGET", "a:1, b:2,,")
	t.Setenv("ELECTRICIAN_COMPRESS", "SNAPPY")
	t.Setenv("ELECTRICIAN_STATIC_HEADERS", "x-tenant=rina, x-env = dev")
	t.Setenv("ELECTRICIAN_PUBLISH_TIMEOUT", "1s")

	o, err := RelayOptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, o.Targets)
	assert.True(t, o.CompressSnappy)
	assert.Equal(t, "rina", o.StaticHeaders["x-tenant"])
	assert.Equal(t, time.Second, o.PublishTimeout)
	assert.False(t, o.oauthEnabled())
}

func TestRelayOptionsRejectBadKey(t *testing.T) {
	t.Setenv("ELECTRICIAN_ENCRYPT", "aesgcm")
	t.Setenv("ELECTRICIAN_AES256_KEY_HEX", "abcd")
	_, err := RelayOptionsFromEnv()
	assert.Error(t, err)
}

func TestRelayOptionsDefaults(t *testing.T) {
	t.Setenv("ELECTRICIAN_TARGET", "")
	t.Setenv("ELECTRICIAN_PUBLISH_TIMEOUT", "garbage")
	o, err := RelayOptionsFromEnv()
	require.NoError(t, err)
	assert.Empty(t, o.Targets)
	assert.Equal(t, 250*time.Millisecond, o.PublishTimeout)
}

func TestNoTargetsYieldsNoop(t *testing.T) {
	p, err := NewForwardPublisher(context.Background(), RelayOptions{})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), Envelope{Topic: "t", Body: []byte("x")}))
	p.Close()
}

func TestForwardPublisherSubmitsWholeEnvelope(t *testing.T) {
	var got []Envelope
	p := &forwardPublisher{
		submit: func(_ context.Context, env Envelope) error {
			got = append(got, env)
			return nil
		},
		stop: func() {},
	}

	body := []byte("hello")
	require.NoError(t, p.Publish(context.Background(), Envelope{
		Topic:   "ipcm.sdu.4.12",
		IPCP:    4,
		Port:    12,
		Headers: map[string]string{"X-Port-Id": "12"},
		Body:    body,
	}))
	body[0] = 'j'

	require.Len(t, got, 1)
	assert.Equal(t, "ipcm.sdu.4.12", got[0].Topic)
	assert.Equal(t, uint16(4), got[0].IPCP)
	assert.Equal(t, int32(12), got[0].Port)
	assert.Equal(t, "12", got[0].Headers["X-Port-Id"])
	assert.Equal(t, []byte("hello"), got[0].Body)

	assert.Error(t, p.Publish(context.Background(), Envelope{Body: []byte("x")}))
	assert.Len(t, got, 1)
	p.Close()
}
