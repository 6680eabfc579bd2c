// Command streambridge-streamer is the per-room child process spawned by
// the broker: it terminates the upstream game-streaming protocol against
// a single Host and relays media/input across stdin/stdout to its
// parent, per the two-process architecture of internal/streamer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/streambridge/streambridge/internal/ipc"
	"github.com/streambridge/streambridge/internal/streamer"
	"github.com/streambridge/streambridge/internal/upstream"
)

func main() {
	roomID := "unknown"
	if len(os.Args) > 1 {
		roomID = os.Args[1]
	}
	slog.Info("streambridge streamer starting", "room_id", roomID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("streamer: signal received, cancelling upstream connection", "room_id", roomID)
		cancel()
	}()

	w := ipc.NewWriter(os.Stdout)
	r := ipc.NewReader(os.Stdin)

	session := streamer.New(&upstream.FakeClient{}, w, r)
	code := session.Run(ctx)

	slog.Info("streamer exiting", "room_id", roomID, "exit_code", code)
	os.Exit(code)
}
