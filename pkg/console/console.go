// Package console is a line-command server on a loopback TCP port. Each
// connection carries exactly one command: the server reads once, runs the
// command, writes whatever it printed and closes.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAddress    = "127.0.0.1:32766"
	DefaultBufferSize = 4096
)

// CommandFunc runs one command. args[0] is the command name. Output goes
// to w; a returned error is printed after it.
type CommandFunc func(w io.Writer, args []string) error

type command struct {
	usage string
	run   CommandFunc
}

var ErrStarted = errors.New("console: already started")

type Console struct {
	addr    string
	bufSize int
	timeout time.Duration
	log     *zap.Logger

	mu       sync.RWMutex
	commands map[string]command

	lnMu    sync.Mutex
	ln      net.Listener
	stopped bool
	wg      sync.WaitGroup
	done    chan struct{}
}

type Option func(*Console)

func WithAddress(a string) Option {
	return func(c *Console) {
		if a != "" {
			c.addr = a
		}
	}
}

func WithBufferSize(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// WithIOTimeout bounds the read and the write on each connection.
func WithIOTimeout(d time.Duration) Option { return func(c *Console) { c.timeout = d } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.log = l
		}
	}
}

func New(opts ...Option) *Console {
	c := &Console{
		addr:     DefaultAddress,
		bufSize:  DefaultBufferSize,
		timeout:  5 * time.Second,
		log:      zap.NewNop(),
		commands: map[string]command{},
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.Register("help", "help", c.help)
	return c
}

// Register adds or replaces a command.
func (c *Console) Register(name, usage string, fn CommandFunc) {
	c.mu.Lock()
	c.commands[name] = command{usage: usage, run: fn}
	c.mu.Unlock()
}

// Start binds the listener and serves in the background until Stop.
// A console starts at most once.
func (c *Console) Start() error {
	c.lnMu.Lock()
	defer c.lnMu.Unlock()
	if c.ln != nil || c.stopped {
		return ErrStarted
	}

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("console listen %s: %w", c.addr, err)
	}
	c.ln = ln
	c.log.Info("console starts", zap.String("address", ln.Addr().String()))

	c.wg.Add(1)
	go c.serve(ln)
	return nil
}

// Addr is the bound address; nil before Start.
func (c *Console) Addr() net.Addr {
	c.lnMu.Lock()
	defer c.lnMu.Unlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Stop closes the listener and waits for in-flight commands. Stopping a
// console that never started, or stopping it again, is a no-op.
func (c *Console) Stop(ctx context.Context) error {
	c.lnMu.Lock()
	if c.ln == nil || c.stopped {
		c.lnMu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	err := c.ln.Close()
	c.lnMu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("console stops")
	return err
}

func (c *Console) serve(ln net.Listener) {
	defer c.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Error("console accept failed", zap.Error(err))
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer conn.Close()
			c.handle(conn)
		}()
	}
}

func (c *Console) handle(conn net.Conn) {
	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}
	buf := make([]byte, c.bufSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		c.log.Error("console read failed", zap.Error(err))
		return
	}

	var out bytes.Buffer
	c.Exec(&out, string(buf[:n]))
	if out.Len() == 0 {
		return
	}
	if _, err := conn.Write(out.Bytes()); err != nil {
		c.log.Error("console write failed", zap.Error(err))
	}
}

// Exec tokenizes line on whitespace and runs the named command.
func (c *Console) Exec(w io.Writer, line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	c.mu.RLock()
	cmd, ok := c.commands[args[0]]
	c.mu.RUnlock()
	if !ok {
		fmt.Fprintf(w, "Unknown command '%s'\n", args[0])
		return
	}

	c.log.Debug("console command", zap.Strings("args", args))
	if err := cmd.run(w, args); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func (c *Console) help(w io.Writer, _ []string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available commands:")
	for _, n := range names {
		fmt.Fprintf(w, "    %s\n", c.commands[n].usage)
	}
	return nil
}

// ErrUsage reports a malformed invocation.
type ErrUsage struct{ Usage string }

func (e ErrUsage) Error() string { return "usage: " + e.Usage }
