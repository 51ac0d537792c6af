// bilbotrack-backup works on the backup document without running the server:
// export/import against a local file, or push/pull/delete against the remote
// store with a caller-supplied bearer token.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/bilbotrack/internal/backup"
	"github.com/claude/bilbotrack/internal/drive"
	"github.com/claude/bilbotrack/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	dataDir := flag.String("data", "", "path to the local data directory")
	file := flag.String("file", "bilbotracker-backup.json", "backup file path for export/import")
	token := flag.String("token", "", "bearer token for remote commands (push, pull, delete-remote)")
	apiBase := flag.String("api-base", "", "override the remote API base URL")
	uploadBase := flag.String("upload-base", "", "override the remote upload base URL")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("bilbotrack-backup", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cmd := flag.Arg(0)
	if cmd == "" || *dataDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: bilbotrack-backup -data <dir> [flags] <export|import|push|pull|delete-remote>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := storage.Open(*dataDir)
	if err != nil {
		log.Error("failed to open store", "dir", *dataDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	switch cmd {
	case "export":
		err = runExport(ctx, store, *file, log)
	case "import":
		err = runImport(ctx, store, *file, log)
	case "push", "pull", "delete-remote":
		if *token == "" {
			log.Error("remote commands require -token")
			os.Exit(1)
		}
		client := newRemoteClient(*apiBase, *uploadBase, log)
		switch cmd {
		case "push":
			err = runPush(ctx, store, client, *token, log)
		case "pull":
			err = runPull(ctx, store, client, *token, log)
		case "delete-remote":
			err = runDeleteRemote(ctx, client, *token, log)
		}
	default:
		log.Error("unknown command", "command", cmd)
		os.Exit(1)
	}

	if err != nil {
		log.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func newRemoteClient(apiBase, uploadBase string, log *slog.Logger) *drive.Client {
	cfg := drive.DefaultConfig()
	if apiBase != "" {
		cfg.APIBase = apiBase
	}
	if uploadBase != "" {
		cfg.UploadBase = uploadBase
	}
	return drive.NewClient(cfg, log)
}

func runExport(ctx context.Context, store *storage.Store, path string, log *slog.Logger) error {
	snap, err := store.ExportAll(ctx)
	if err != nil {
		return err
	}

	doc := backup.New(snap, time.Now())
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}

	log.Info("exported", "file", path,
		"exercises", len(doc.Data.Exercises), "sessions", len(doc.Data.Sessions))
	return nil
}

func runImport(ctx context.Context, store *storage.Store, path string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading backup file: %w", err)
	}

	doc, err := backup.Decode(data)
	if err != nil {
		return err
	}
	if err := store.ImportAll(ctx, doc.Snapshot()); err != nil {
		return err
	}

	log.Info("imported", "file", path, "exported_at", doc.ExportedAt,
		"exercises", len(doc.Data.Exercises), "sessions", len(doc.Data.Sessions))
	return nil
}

func runPush(ctx context.Context, store *storage.Store, client *drive.Client, token string, log *slog.Logger) error {
	snap, err := store.ExportAll(ctx)
	if err != nil {
		return err
	}
	doc := backup.New(snap, time.Now())

	existing, err := client.Find(ctx, token)
	if err != nil {
		return err
	}
	existingID := ""
	if existing != nil {
		existingID = existing.ID
	}
	if err := client.Upload(ctx, token, doc, existingID); err != nil {
		return err
	}

	log.Info("pushed", "replaced", existingID != "",
		"exercises", len(doc.Data.Exercises), "sessions", len(doc.Data.Sessions))
	return nil
}

func runPull(ctx context.Context, store *storage.Store, client *drive.Client, token string, log *slog.Logger) error {
	file, err := client.Find(ctx, token)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("no remote backup document found")
	}

	doc, err := client.Download(ctx, token, file.ID)
	if err != nil {
		return err
	}
	if err := store.ImportAll(ctx, doc.Snapshot()); err != nil {
		return err
	}

	log.Info("pulled", "modified", file.ModifiedTime,
		"exercises", len(doc.Data.Exercises), "sessions", len(doc.Data.Sessions))
	return nil
}

func runDeleteRemote(ctx context.Context, client *drive.Client, token string, log *slog.Logger) error {
	file, err := client.Find(ctx, token)
	if err != nil {
		return err
	}
	if file == nil {
		log.Info("no remote backup document to delete")
		return nil
	}
	if err := client.Delete(ctx, token, file.ID); err != nil {
		return err
	}
	log.Info("remote backup deleted")
	return nil
}
