package core

import (
	"fmt"
	"io"
	"net/http"

	"github.com/joeydtaylor/steeze-ipcm/pkg/codec"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	httpx "github.com/joeydtaylor/steeze-ipcm/pkg/transport/httpx"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type admin struct {
	m     *kipcm.Manager
	codec codec.Codec
	log   *zap.Logger
}

type createIPCPRequest struct {
	ID      kipcm.IPCProcessID `json:"id"`
	Name    string             `json:"name"`
	Factory string             `json:"factory,omitempty"`
}

type addFlowRequest struct {
	IPCP kipcm.IPCProcessID `json:"ipcp"`
	Port kipcm.PortID       `json:"port"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *admin) listFactories(w http.ResponseWriter, _ *http.Request) {
	names, err := a.m.Factories()
	if err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusOK, names)
}

func (a *admin) listIPCPs(w http.ResponseWriter, _ *http.Request) {
	list, err := a.m.IPCPs()
	if err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusOK, list)
}

func (a *admin) createIPCP(w http.ResponseWriter, r *http.Request) {
	var req createIPCPRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	name, err := kipcm.ParseName(req.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.IPCPCreate(name, req.ID, req.Factory); err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusCreated, req)
}

func (a *admin) destroyIPCP(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(httpx.Param(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.IPCPDestroy(id); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *admin) configureIPCP(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(httpx.Param(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	var cfg kipcm.IPCPConfig
	if err := a.decode(r, &cfg); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.IPCPConfigure(id, &cfg); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *admin) listFlows(w http.ResponseWriter, _ *http.Request) {
	list, err := a.m.Flows()
	if err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusOK, list)
}

func (a *admin) getFlow(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(httpx.Param(r, "port"))
	if err != nil {
		a.fail(w, err)
		return
	}
	info, err := a.m.Flow(port)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusOK, info)
}

func (a *admin) addFlow(w http.ResponseWriter, r *http.Request) {
	var req addFlowRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.FlowAdd(req.IPCP, req.Port); err != nil {
		a.fail(w, err)
		return
	}
	a.reply(w, http.StatusCreated, req)
}

func (a *admin) removeFlow(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(httpx.Param(r, "port"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.FlowRemove(port); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postSDU queues the raw request body on the flow.
func (a *admin) postSDU(w http.ResponseWriter, r *http.Request) {
	port, sdu, err := a.portAndBody(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.SDUPost(port, sdu); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// readSDU answers with the oldest queued SDU as the raw body, or 204.
func (a *admin) readSDU(w http.ResponseWriter, r *http.Request) {
	port, err := parsePort(httpx.Param(r, "port"))
	if err != nil {
		a.fail(w, err)
		return
	}
	sdu, err := a.m.SDURead(port)
	if err != nil {
		a.fail(w, err)
		return
	}
	b, err := codec.Octet.Marshal(sdu.Bytes())
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", codec.Octet.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (a *admin) writeSDU(w http.ResponseWriter, r *http.Request) {
	port, sdu, err := a.portAndBody(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.SDUWrite(port, sdu); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *admin) notifyAllocateFlowRequest(w http.ResponseWriter, r *http.Request) {
	var msg kipcm.AllocFlowRequestMsg
	if err := a.decode(r, &msg); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.m.NotifyAllocateFlowRequest(&msg); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *admin) portAndBody(r *http.Request) (kipcm.PortID, *kipcm.SDU, error) {
	port, err := parsePort(httpx.Param(r, "port"))
	if err != nil {
		return 0, nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", kipcm.ErrInvalidSDU, err)
	}
	var body []byte
	if err := codec.Octet.Unmarshal(raw, &body); err != nil {
		return 0, nil, err
	}
	return port, kipcm.SDUFrom(body), nil
}

func (a *admin) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %w", kipcm.ErrInvalidArgument, err)
	}
	if err := a.codec.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", kipcm.ErrInvalidArgument, err)
	}
	return nil
}

func (a *admin) reply(w http.ResponseWriter, status int, v any) {
	b, err := a.codec.Marshal(v)
	if err != nil {
		a.log.Error("admin response encode failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, b, status)
}

func (a *admin) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if status == http.StatusInternalServerError {
		a.log.Error("admin request failed", zap.Error(err))
	}
	b, _ := a.codec.Marshal(errorResponse{Error: err.Error()})
	writeJSON(w, b, status)
}

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}
