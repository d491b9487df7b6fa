package core

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/codec"
	"github.com/joeydtaylor/steeze-ipcm/pkg/console"
	"github.com/joeydtaylor/steeze-ipcm/pkg/electrician"
	"github.com/joeydtaylor/steeze-ipcm/pkg/ipcp"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"github.com/joeydtaylor/steeze-ipcm/pkg/manifest"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/steeze-ipcm/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *kipcm.Manager {
	t.Helper()
	m, err := kipcm.Init()
	require.NoError(t, err)
	_, err = m.FactoryRegister(kipcm.DefaultFactory, ipcp.NewNormal(nil, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func newAdmin(t *testing.T, m *kipcm.Manager, a *auth.Middleware, requireAuth bool) http.Handler {
	t.Helper()
	return BuildRouter(BuildDeps{
		Manager:     m,
		Auth:        a,
		Metrics:     metrics.NewPromHttpHandler(),
		Router:      httpx.NewChi(),
		RequireAuth: requireAuth,
	})
}

func do(h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminHelloScenario(t *testing.T) {
	h := newAdmin(t, newManager(t), nil, false)

	rec := do(h, http.MethodPost, "/ipcps", `{"id":1,"name":"test.IPCP/1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(h, http.MethodPost, "/flows", `{"ipcp":1,"port":7}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/flows/7/sdus", "hello")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(h, http.MethodGet, "/flows/7/sdus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	rec = do(h, http.MethodGet, "/flows/7/sdus", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodPost, "/ipcps", `{"id":1,"name":"test.IPCP/1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodGet, "/ipcps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []kipcm.IPCPInfo
	require.NoError(t, codec.JSONStrict.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Flows)
	assert.Equal(t, kipcm.DefaultFactory, list[0].Factory)

	rec = do(h, http.MethodDelete, "/flows/7", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodGet, "/flows/7/sdus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(h, http.MethodPost, "/flows/7/sdus", "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminErrorMapping(t *testing.T) {
	m := newManager(t)
	h := newAdmin(t, m, nil, false)

	require.NoError(t, m.IPCPCreate(kipcm.Name{ProcessName: "a"}, 1, ""))
	require.NoError(t, m.FlowAdd(1, 7))

	cases := []struct {
		name         string
		method, path string
		body         string
		want         int
	}{
		{"unknown factory", http.MethodPost, "/ipcps", `{"id":2,"name":"b","factory":"nope"}`, http.StatusNotFound},
		{"unknown field", http.MethodPost, "/ipcps", `{"id":2,"name":"b","extra":1}`, http.StatusBadRequest},
		{"bad name", http.MethodPost, "/ipcps", `{"id":2,"name":""}`, http.StatusBadRequest},
		{"bad id", http.MethodDelete, "/ipcps/abc", "", http.StatusBadRequest},
		{"missing ipcp", http.MethodDelete, "/ipcps/9", "", http.StatusNotFound},
		{"flow on missing ipcp", http.MethodPost, "/flows", `{"ipcp":9,"port":8}`, http.StatusNotFound},
		{"duplicate flow", http.MethodPost, "/flows", `{"ipcp":1,"port":7}`, http.StatusConflict},
		{"empty sdu", http.MethodPost, "/flows/7/sdus", "", http.StatusBadRequest},
		{"queue full", http.MethodPost, "/flows/7/sdus", strings.Repeat("x", 4096-8+1), http.StatusInsufficientStorage},
		{"missing attrs", http.MethodPost, "/notify/allocate-flow-request", `{"header":{"src_ipc_id":1,"dst_ipc_id":0}}`, http.StatusBadRequest},
		{"notify unknown", http.MethodPost, "/notify/allocate-flow-request", `{"header":{"src_ipc_id":5,"dst_ipc_id":0},"attrs":{"source":{"process_name":"a"},"dest":{"process_name":"b"},"flow_spec":{},"port_id":3}}`, http.StatusNotFound},
		{"configure missing", http.MethodPut, "/ipcps/9/config", `{"dif_name":"x"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminWriteConfigureNotify(t *testing.T) {
	m := newManager(t)
	h := newAdmin(t, m, nil, false)
	require.NoError(t, m.IPCPCreate(kipcm.Name{ProcessName: "a"}, 1, ""))
	require.NoError(t, m.FlowAdd(1, 7))

	rec := do(h, http.MethodPut, "/ipcps/1/config", `{"dif_name":"normal.DIF","entries":{"addr":"16"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/flows/7/write", "payload")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/notify/allocate-flow-request",
		`{"header":{"src_ipc_id":1,"dst_ipc_id":2},"attrs":{"source":{"process_name":"a"},"dest":{"process_name":"b"},"flow_spec":{"max_sdu_size":1400},"port_id":9}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	inst, err := m.Instance(1)
	require.NoError(t, err)
	ni := inst.(*ipcp.NormalInstance)
	assert.Equal(t, "normal.DIF", ni.DIF())
	written := ni.Drain()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("payload"), written[0].SDU.Bytes())
	reqs := ni.PendingRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint32(1400), reqs[0].FlowSpec.MaxSDUSize)

	rec = do(h, http.MethodGet, "/flows/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"capacity":4096`)

	rec = do(h, http.MethodGet, "/factories", "")
	assert.Equal(t, `["normal-ipc"]`, rec.Body.String())

	rec = do(h, http.MethodDelete, "/ipcps/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodPost, "/flows/7/write", "payload")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRequireAuth(t *testing.T) {
	a := auth.New(auth.Options{Secret: "k"})
	h := newAdmin(t, newManager(t), a, true)

	body := `{"id":1,"name":"a"}`
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/ipcps", body).Code)

	viewer, err := a.Sign(auth.User{Username: "v", Role: auth.Role{Name: "viewer"}}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/ipcps", body, "Authorization", "Bearer "+viewer).Code)

	admin, err := a.Sign(auth.User{Username: "ops", Role: auth.Role{Name: "admin"}}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/ipcps", body, "Authorization", "Bearer "+admin).Code)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ipcps", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", "").Code)
}

func TestAdminRequireAuthWithoutMiddleware(t *testing.T) {
	h := newAdmin(t, newManager(t), nil, true)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodDelete, "/flows/1", "").Code)
}

func TestConsoleCommands(t *testing.T) {
	m := newManager(t)
	c := console.New()
	RegisterCommands(c, m)

	run := func(line string) string {
		var out bytes.Buffer
		c.Exec(&out, line)
		return out.String()
	}

	assert.Equal(t, "normal-ipc\n", run("list-factories"))
	assert.Equal(t, "No IPC processes\n", run("list-ipcps"))
	assert.Equal(t, "IPC process 1 created\n", run("create-ipcp 1 test.IPCP/1"))
	assert.Contains(t, run("create-ipcp 1 test.IPCP/1"), "Error: ")
	assert.Contains(t, run("create-ipcp 1"), "usage: create-ipcp")
	assert.Equal(t, "Flow 7 bound to IPC process 1\n", run("add-flow 1 7"))
	assert.Equal(t, "Posted 11 bytes on flow 7\n", run("post 7 hello world"))
	assert.Equal(t, "hello world\n", run("read 7"))
	assert.Equal(t, "No SDU queued\n", run("read 7"))
	assert.Equal(t, "Wrote 2 bytes on flow 7\n", run("write 7 hi"))
	assert.Equal(t, "IPC process 1 configured for DIF normal.DIF\n", run("configure-ipcp 1 normal.DIF addr=16"))
	assert.Contains(t, run("configure-ipcp 1 normal.DIF bogus"), "Error: ")
	assert.Equal(t, "Flow allocation request delivered to IPC process 1\n", run("alloc-flow-request 1 a/1 b/1 9"))
	assert.Equal(t, "1\ttest.IPCP/1//\tnormal-ipc\t1 flows\n", run("list-ipcps"))
	assert.Equal(t, "port 7\tipcp 1\t0/4096 bytes queued\n", run("list-flows"))
	assert.Equal(t, "Flow 7 removed\n", run("remove-flow 7"))
	assert.Contains(t, run("read 7"), "no flow bound")
	assert.Equal(t, "IPC process 1 destroyed\n", run("destroy-ipcp 1"))
	assert.Contains(t, run("destroy-ipcp x"), "invalid argument")
	assert.Equal(t, "Unknown command 'frobnicate'\n", run("frobnicate 1 2"))
}

func TestLoadConfigAndProvision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipcm.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[manager]
queue_capacity = 1024

[console]
enable = false

[[factory]]
name = "shim"
kind = "shim-relay"
[factory.relay]
topic = "rina"
timeout = "100ms"

[[ipcp]]
id = 1
name = "a.IPCP/1"
dif = "normal.DIF"
[ipcp.config]
address = "16"

[[ipcp]]
id = 2
name = "b.IPCP/1"
factory = "shim"

[[flow]]
port = 7
ipcp = 1
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Console.Enabled())
	assert.Equal(t, 100*time.Millisecond, cfg.Factories[0].Relay.PublishTimeout(0))

	m, err := kipcm.Init(kipcm.WithQueueCapacity(cfg.Manager.QueueCapacity))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	require.NoError(t, Provision(m, cfg, Relay{}, nil))

	names, err := m.Factories()
	require.NoError(t, err)
	assert.Equal(t, []string{"normal-ipc", "shim"}, names)

	inst, err := m.Instance(1)
	require.NoError(t, err)
	ni := inst.(*ipcp.NormalInstance)
	assert.Equal(t, "normal.DIF", ni.DIF())
	v, _ := ni.Entry("address")
	assert.Equal(t, "16", v)

	info, err := m.Flow(7)
	require.NoError(t, err)
	assert.Equal(t, 1024, info.Capacity)

	// provisioning twice collides on the factory names
	assert.ErrorIs(t, Provision(m, cfg, Relay{}, nil), kipcm.ErrDuplicateFactory)
}

type deadlinePublisher struct {
	budgets map[string]time.Duration
}

func (p *deadlinePublisher) Publish(ctx context.Context, env electrician.Envelope) error {
	dl, ok := ctx.Deadline()
	if !ok {
		return errors.New("publish without deadline")
	}
	p.budgets[env.Topic] = time.Until(dl)
	return nil
}

func (p *deadlinePublisher) Close() {}

func TestProvisionRelayTimeoutFallback(t *testing.T) {
	cfg := manifest.Config{
		Factories: []manifest.Factory{
			{Name: "env", Kind: manifest.KindShimRelay, Relay: &manifest.Relay{Topic: "env"}},
			{Name: "own", Kind: manifest.KindShimRelay, Relay: &manifest.Relay{Topic: "own", Timeout: "50ms"}},
		},
		IPCPs: []manifest.IPCP{
			{ID: 1, Name: "a.IPCP/1", Factory: "env"},
			{ID: 2, Name: "b.IPCP/1", Factory: "own"},
		},
		Flows: []manifest.Flow{{Port: 1, IPCP: 1}, {Port: 2, IPCP: 2}},
	}
	require.NoError(t, cfg.Validate())

	m, err := kipcm.Init()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	pub := &deadlinePublisher{budgets: map[string]time.Duration{}}
	require.NoError(t, Provision(m, cfg, Relay{Publisher: pub, Timeout: 5 * time.Second}, nil))

	require.NoError(t, m.SDUWrite(1, kipcm.NewSDU([]byte("x"))))
	require.NoError(t, m.SDUWrite(2, kipcm.NewSDU([]byte("y"))))

	assert.Greater(t, pub.budgets["env.1.1"], time.Second)
	assert.LessOrEqual(t, pub.budgets["own.2.2"], 50*time.Millisecond)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, kipcm.DefaultFactory, cfg.Manager.DefaultFactory)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[flow]]\nport = 1\nipcp = 3\n"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
