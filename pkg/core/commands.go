package core

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joeydtaylor/steeze-ipcm/pkg/console"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
)

// RegisterCommands installs the manager commands on c.
func RegisterCommands(c *console.Console, m *kipcm.Manager) {
	cmds := &commands{m: m}
	c.Register("list-factories", "list-factories", cmds.listFactories)
	c.Register("list-ipcps", "list-ipcps", cmds.listIPCPs)
	c.Register("list-flows", "list-flows", cmds.listFlows)
	c.Register("create-ipcp", "create-ipcp <id> <name> [factory]", cmds.createIPCP)
	c.Register("destroy-ipcp", "destroy-ipcp <id>", cmds.destroyIPCP)
	c.Register("configure-ipcp", "configure-ipcp <id> <dif> [key=value...]", cmds.configureIPCP)
	c.Register("add-flow", "add-flow <ipcp> <port>", cmds.addFlow)
	c.Register("remove-flow", "remove-flow <port>", cmds.removeFlow)
	c.Register("post", "post <port> <text...>", cmds.post)
	c.Register("read", "read <port>", cmds.read)
	c.Register("write", "write <port> <text...>", cmds.write)
	c.Register("alloc-flow-request", "alloc-flow-request <ipcp> <source> <dest> <port>", cmds.allocFlowRequest)
}

type commands struct{ m *kipcm.Manager }

func (c *commands) listFactories(w io.Writer, _ []string) error {
	names, err := c.m.Factories()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

func (c *commands) listIPCPs(w io.Writer, _ []string) error {
	list, err := c.m.IPCPs()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No IPC processes")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d flows\n", p.ID, p.Name, p.Factory, p.Flows)
	}
	return nil
}

func (c *commands) listFlows(w io.Writer, _ []string) error {
	list, err := c.m.Flows()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No flows")
		return nil
	}
	for _, f := range list {
		fmt.Fprintf(w, "port %d\tipcp %d\t%d/%d bytes queued\n", f.Port, f.IPCP, f.Queued, f.Capacity)
	}
	return nil
}

func (c *commands) createIPCP(w io.Writer, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return console.ErrUsage{Usage: "create-ipcp <id> <name> [factory]"}
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	name, err := kipcm.ParseName(args[2])
	if err != nil {
		return err
	}
	factory := ""
	if len(args) == 4 {
		factory = args[3]
	}
	if err := c.m.IPCPCreate(name, id, factory); err != nil {
		return err
	}
	fmt.Fprintf(w, "IPC process %d created\n", id)
	return nil
}

func (c *commands) destroyIPCP(w io.Writer, args []string) error {
	if len(args) != 2 {
		return console.ErrUsage{Usage: "destroy-ipcp <id>"}
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	if err := c.m.IPCPDestroy(id); err != nil {
		return err
	}
	fmt.Fprintf(w, "IPC process %d destroyed\n", id)
	return nil
}

func (c *commands) configureIPCP(w io.Writer, args []string) error {
	if len(args) < 3 {
		return console.ErrUsage{Usage: "configure-ipcp <id> <dif> [key=value...]"}
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	cfg := &kipcm.IPCPConfig{DIFName: args[2], Entries: map[string]string{}}
	for _, kv := range args[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: entry %q is not key=value", kipcm.ErrInvalidArgument, kv)
		}
		cfg.Entries[k] = v
	}
	if err := c.m.IPCPConfigure(id, cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "IPC process %d configured for DIF %s\n", id, cfg.DIFName)
	return nil
}

func (c *commands) addFlow(w io.Writer, args []string) error {
	if len(args) != 3 {
		return console.ErrUsage{Usage: "add-flow <ipcp> <port>"}
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	port, err := parsePort(args[2])
	if err != nil {
		return err
	}
	if err := c.m.FlowAdd(id, port); err != nil {
		return err
	}
	fmt.Fprintf(w, "Flow %d bound to IPC process %d\n", port, id)
	return nil
}

func (c *commands) removeFlow(w io.Writer, args []string) error {
	if len(args) != 2 {
		return console.ErrUsage{Usage: "remove-flow <port>"}
	}
	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	if err := c.m.FlowRemove(port); err != nil {
		return err
	}
	fmt.Fprintf(w, "Flow %d removed\n", port)
	return nil
}

func (c *commands) post(w io.Writer, args []string) error {
	port, sdu, err := portAndText(args, "post <port> <text...>")
	if err != nil {
		return err
	}
	if err := c.m.SDUPost(port, sdu); err != nil {
		return err
	}
	fmt.Fprintf(w, "Posted %d bytes on flow %d\n", sdu.Len(), port)
	return nil
}

func (c *commands) write(w io.Writer, args []string) error {
	port, sdu, err := portAndText(args, "write <port> <text...>")
	if err != nil {
		return err
	}
	if err := c.m.SDUWrite(port, sdu); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %d bytes on flow %d\n", sdu.Len(), port)
	return nil
}

func (c *commands) read(w io.Writer, args []string) error {
	if len(args) != 2 {
		return console.ErrUsage{Usage: "read <port>"}
	}
	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	sdu, err := c.m.SDURead(port)
	if errors.Is(err, kipcm.ErrUnderrun) {
		fmt.Fprintln(w, "No SDU queued")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", sdu.Bytes())
	return nil
}

func (c *commands) allocFlowRequest(w io.Writer, args []string) error {
	if len(args) != 5 {
		return console.ErrUsage{Usage: "alloc-flow-request <ipcp> <source> <dest> <port>"}
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	src, err := kipcm.ParseName(args[2])
	if err != nil {
		return err
	}
	dst, err := kipcm.ParseName(args[3])
	if err != nil {
		return err
	}
	port, err := parsePort(args[4])
	if err != nil {
		return err
	}
	msg := &kipcm.AllocFlowRequestMsg{
		Header: kipcm.MsgHeader{SrcIPCID: id},
		Attrs:  &kipcm.AllocFlowRequestAttrs{Source: src, Dest: dst, PortID: port},
	}
	if err := c.m.NotifyAllocateFlowRequest(msg); err != nil {
		return err
	}
	fmt.Fprintf(w, "Flow allocation request delivered to IPC process %d\n", id)
	return nil
}

func portAndText(args []string, usage string) (kipcm.PortID, *kipcm.SDU, error) {
	if len(args) < 3 {
		return 0, nil, console.ErrUsage{Usage: usage}
	}
	port, err := parsePort(args[1])
	if err != nil {
		return 0, nil, err
	}
	return port, kipcm.SDUFrom([]byte(strings.Join(args[2:], " "))), nil
}
