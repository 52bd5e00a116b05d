package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/subsecond-dev/subsecond/pkg/logging"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a devtools listener that logs incoming handshake/patch/diagnostic frames",
	Long: `serve is a standalone devtools endpoint for inspecting the wire
protocol end to end: it accepts connections, logs every frame it
receives, and acknowledges each patch message with an empty-Kind
Diagnostic. A real target process embeds pkg/applier directly (it needs
the process's own Dispatcher Table and Binder registry, which this CLI
can't construct on someone else's behalf); this command exists for
devtools tooling and manual protocol testing.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("addr") && activeConfig.DevtoolsListenAddr != "" {
			serveAddr = activeConfig.DevtoolsListenAddr
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(os.Stderr, io.Discard)

		ln, err := transport.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", serveAddr, err)
		}
		defer ln.Close()
		logger.Info("devtools listener started", slog.String("addr", ln.Addr().String()))

		for {
			codec, err := ln.Accept()
			if err != nil {
				return fmt.Errorf("accept: %w", err)
			}
			go serveConn(logger, codec)
		}
	},
}

func serveConn(logger *slog.Logger, codec *transport.Codec) {
	defer codec.Close()
	for {
		frame, err := codec.ReadFrame()
		if err != nil {
			if err != io.EOF {
				logger.Warn("connection error", slog.String("err", err.Error()))
			}
			return
		}

		switch {
		case frame.Handshake != nil:
			logger.Info("handshake", slog.Uint64("runtime_anchor_addr", frame.Handshake.RuntimeAnchorAddr), slog.Int("pid", int(frame.Handshake.PID)))
		case frame.Message != nil:
			logger.Info("patch message",
				slog.Int("sequence", int(frame.Message.Sequence)),
				slog.Int("entries", len(frame.Message.JumpTable.Entries)),
				slog.Int("artifact_bytes", len(frame.Message.ArtifactBytes)))
			if err := codec.WriteDiagnostic(&transport.Diagnostic{Sequence: frame.Message.Sequence}); err != nil {
				logger.Warn("writing ack", slog.String("err", err.Error()))
				return
			}
		case frame.Diagnostic != nil:
			logger.Info("diagnostic", slog.String("kind", frame.Diagnostic.Kind), slog.String("message", frame.Diagnostic.Message))
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7343", "address to listen on")
}
