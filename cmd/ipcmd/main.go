// Command ipcmd runs the IPC process manager with its console and admin
// API. "ipcmd token <user> [role]" prints an admin API assertion signed
// with IPCM_ADMIN_SECRET; "ipcmd send <command...>" runs one console
// command against a running daemon.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/manifest"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/serverfx"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "token":
			os.Exit(token(args[1:]))
		case "send":
			os.Exit(send(args[1:]))
		}
	}

	fx.New(
		serverfx.Module(serverfx.WithService("ipcmd")),
	).Run()
}

func token(args []string) int {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	ttl := fs.DurationP("ttl", "t", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ipcmd token [--ttl 1h] <user> [role]")
		return 2
	}
	role := "admin"
	if fs.NArg() > 1 {
		role = fs.Arg(1)
	}
	tok, err := auth.ProvideAuthentication().Sign(auth.User{
		Username: fs.Arg(0),
		Role:     auth.Role{Name: role},
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(tok)
	return 0
}

func send(args []string) int {
	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	addr := fs.StringP("addr", "a", envOr("IPCM_CONSOLE_ADDRESS", manifest.DefaultConsoleAddress), "console address")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ipcmd send [--addr host:port] <command> [args...]")
		return 2
	}
	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, strings.Join(fs.Args(), " ")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := io.Copy(os.Stdout, conn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
