package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/calmwave/calmwave/internal/capture"
	"github.com/calmwave/calmwave/internal/chunkstore"
	"github.com/calmwave/calmwave/internal/logger"
	"github.com/calmwave/calmwave/internal/uploader"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: recorder <command> [args]

commands:
  record                 capture audio and stream it to the server until Ctrl-C
  list                   list your sessions
  status <session_id>    show one session
  download <session_id> <out.wav>
  delete <session_id>
  health                 check server liveness

environment:
  API_URL    server base url (default http://localhost:8080)
  API_TOKEN  bearer token
  WORK_DIR   local capture/chunk directory (default ~/.calmwave)`)
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	baseURL := os.Getenv("API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	api := uploader.NewClient(baseURL, os.Getenv("API_TOKEN"))

	ctx := context.Background()

	var err error
	switch flag.Arg(0) {
	case "record":
		err = runRecord(ctx, api)
	case "list":
		err = runList(ctx, api)
	case "status":
		if flag.NArg() < 2 {
			usage()
		}
		err = runStatus(ctx, api, flag.Arg(1))
	case "download":
		if flag.NArg() < 3 {
			usage()
		}
		err = runDownload(ctx, api, flag.Arg(1), flag.Arg(2))
	case "delete":
		if flag.NArg() < 2 {
			usage()
		}
		err = api.DeleteSession(ctx, flag.Arg(1))
	case "health":
		err = api.Health(ctx)
		if err == nil {
			fmt.Println("ok")
		}
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func workDir() string {
	if d := os.Getenv("WORK_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calmwave"
	}
	return filepath.Join(home, ".calmwave")
}

func runRecord(ctx context.Context, api *uploader.Client) error {
	log := logger.New()
	dir := workDir()

	chunks, err := chunkstore.New(filepath.Join(dir, "chunks"))
	if err != nil {
		return err
	}

	ctrl := capture.NewController(nil, capture.NewExecBackend(), filepath.Join(dir, "captures"))

	capt, levels, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Println("recording; press Ctrl-C to stop")

	// drain the level meter; a terminal client has nowhere to draw it
	go func() {
		for range levels {
		}
	}()

	sched := uploader.NewScheduler(api, chunks, capt.Path, capt.SessionID, log)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(runCtx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	cancel()
	<-done

	if _, err := ctrl.Stop(); err != nil {
		return err
	}

	res, err := sched.Finalize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %s\n", res.SessionID, res.Status)
	return nil
}

func runList(ctx context.Context, api *uploader.Client) error {
	sessions, err := api.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-18s  chunks=%d  %s\n",
			s.SessionID, s.Status, s.ChunkCount, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runStatus(ctx context.Context, api *uploader.Client, sessionID string) error {
	s, err := api.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("session %s\n  status: %s\n  chunks: %d\n", s.SessionID, s.Status, s.ChunkCount)
	if s.LastError != "" {
		fmt.Printf("  last_error: %s\n", s.LastError)
	}
	return nil
}

func runDownload(ctx context.Context, api *uploader.Client, sessionID, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := api.DownloadArtifact(ctx, sessionID, f); err != nil {
		_ = os.Remove(out)
		return err
	}
	fmt.Println("saved", out)
	return nil
}
