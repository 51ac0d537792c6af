package drive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/bilbotrack/internal/backup"
	"github.com/claude/bilbotrack/internal/models"
	"github.com/google/uuid"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Config{APIBase: srv.URL, UploadBase: srv.URL, FileName: backup.FileName}, log)
}

func validDocument(t *testing.T) *backup.Document {
	t.Helper()
	return backup.New(models.Snapshot{Settings: models.DefaultSettings()}, time.Now())
}

func TestFind(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("spaces") != "appDataFolder" {
			t.Errorf("spaces = %q", q.Get("spaces"))
		}
		if !strings.Contains(q.Get("q"), backup.FileName) {
			t.Errorf("query %q does not name the backup file", q.Get("q"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "file-1", "modifiedTime": "2026-02-15T12:00:00Z"},
			},
		})
	})

	file, err := client.Find(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if file == nil || file.ID != "file-1" {
		t.Fatalf("file = %+v", file)
	}
	want := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if !file.ModifiedTime.Equal(want) {
		t.Errorf("modifiedTime = %v, want %v", file.ModifiedTime, want)
	}
}

// TestFindAbsent verifies a missing document is nil, not an error.
func TestFindAbsent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
	})

	file, err := client.Find(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if file != nil {
		t.Errorf("file = %+v, want nil", file)
	}
}

func TestFindAuthFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	if _, err := client.Find(context.Background(), "bad"); err == nil {
		t.Fatal("Find succeeded with rejected token")
	}
}

func TestDownload(t *testing.T) {
	doc := validDocument(t)
	data, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/files/file-1") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "media" {
			t.Errorf("alt = %q", r.URL.Query().Get("alt"))
		}
		w.Write(data)
	})

	got, err := client.Download(context.Background(), "tok", "file-1")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got.AppID != backup.AppID {
		t.Errorf("appId = %q", got.AppID)
	}
}

// TestDownloadRejectsInvalidContent verifies a document failing validation is
// an error even when the HTTP fetch succeeds.
func TestDownloadRejectsInvalidContent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schemaVersion": 99, "appId": "bilbotracker"}`))
	})

	if _, err := client.Download(context.Background(), "tok", "file-1"); err == nil {
		t.Fatal("Download accepted an invalid document")
	}
}

func TestUploadCreate(t *testing.T) {
	var gotMethod, gotContentType, gotPath string
	var gotBody []byte

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Upload(context.Background(), "tok", validDocument(t), ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/files" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotContentType, "multipart/related") {
		t.Errorf("content type = %q", gotContentType)
	}
	body := string(gotBody)
	if !strings.Contains(body, `"appDataFolder"`) {
		t.Errorf("create upload body missing appDataFolder parent")
	}
	if !strings.Contains(body, `"schemaVersion":1`) {
		t.Errorf("upload body missing document content")
	}
}

func TestUploadReplace(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Upload(context.Background(), "tok", validDocument(t), "file-1"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/files/file-1" {
		t.Errorf("path = %q", gotPath)
	}
	if strings.Contains(string(gotBody), "appDataFolder") {
		t.Errorf("replace upload should not set parents")
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"forbidden", http.StatusForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s", r.Method)
				}
				w.WriteHeader(tt.status)
			})
			err := client.Delete(context.Background(), "tok", uuid.NewString())
			if (err != nil) != tt.wantErr {
				t.Errorf("Delete err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
