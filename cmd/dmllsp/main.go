// Command dmllsp starts the DML language server (spec.md §6), speaking
// LSP over stdio or over a UNIX socket.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/fenghaitao/dml-language-server/internal/device"
	"github.com/fenghaitao/dml-language-server/internal/lsp"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var pipePath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "dmllsp",
		Short: "DML language server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), pipePath, verbose)
		},
	}
	cmd.Flags().StringVar(&pipePath, "pipe", "", "path to a UNIX socket to connect to; uses stdio if not specified")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging to stderr")
	return cmd
}

func run(ctx context.Context, pipePath string, verbose bool) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	transport, err := dial(pipePath)
	if err != nil {
		return err
	}

	coord := device.New(log.Named("device"), nil)
	defer func() {
		if err := coord.Close(); err != nil {
			log.Warn("error closing coordinator", zap.Error(err))
		}
	}()

	stream := jsonrpc2.NewStream(transport)
	conn := jsonrpc2.NewConn(stream)
	server := lsp.NewServer(conn, coord, log.Named("lsp"))

	conn.Go(ctx, protocol.ServerHandler(server, jsonrpc2.MethodNotFoundHandler))
	<-conn.Done()
	return conn.Err()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	// The LSP client owns stdout for protocol frames; every log line goes
	// to stderr instead (spec.md §6's ambient-stack logging convention).
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// dial opens the transport the client will speak LSP over: a UNIX socket
// if --pipe is given, stdio otherwise.
func dial(pipePath string) (io.ReadWriteCloser, error) {
	if pipePath != "" {
		conn, err := net.Dial("unix", pipePath)
		if err != nil {
			return nil, fmt.Errorf("could not open IPC socket %q: %w", pipePath, err)
		}
		return conn, nil
	}
	return stdio{os.Stdin, os.Stdout}, nil
}

// stdio composes the process's standard streams into a single
// ReadWriteCloser; closing it is a no-op since neither stream is ours to
// close.
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }
