package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/choraleia/explorer/pkg/db"
	"github.com/choraleia/explorer/pkg/event"
	"github.com/choraleia/explorer/pkg/explorer"
	"github.com/choraleia/explorer/pkg/service"
	fsimpl "github.com/choraleia/explorer/pkg/service/fs"
	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	root   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs", "old"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "old", "x.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "readme.md"), []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	catalog, err := service.NewCatalogService(ctx, fsimpl.NewLocalFileSystem(), root)
	if err != nil {
		t.Fatal(err)
	}
	gdb, err := db.Open(filepath.Join(t.TempDir(), "explorer.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	history := service.NewUploadHistoryService(gdb)

	svc := service.NewExplorerService(catalog,
		service.WithEmitter(event.NewEmitter()),
		service.WithUploadHistory(history),
		service.WithUploadGracePeriod(10*time.Millisecond),
		service.WithAuthorizer(service.NewPolicyAuthorizer([]string{"locked"})),
	)
	t.Cleanup(svc.Close)

	engine := gin.New()
	NewExplorerHandler(svc, history).Register(engine.Group("/api"))
	return &testServer{t: t, engine: engine, root: root}
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, envelope) {
	s.t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: bad response body %q", req.Method, req.URL.Path, w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func (s *testServer) createSession() string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/sessions", map[string]string{"user": "alice"})
	if code != http.StatusOK {
		s.t.Fatalf("create session: %d %s", code, env.Message)
	}
	return decode[service.SessionInfo](s.t, env.Data).ID
}

func (s *testServer) listing(id string) service.ListingView {
	s.t.Helper()
	code, env := s.do(http.MethodGet, "/api/sessions/"+id+"/listing", nil)
	if code != http.StatusOK {
		s.t.Fatalf("listing: %d %s", code, env.Message)
	}
	return decode[service.ListingView](s.t, env.Data)
}

func (s *testServer) dispatch(id string, action map[string]any) explorer.StateSnapshot {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/sessions/"+id+"/actions", action)
	if code != http.StatusOK {
		s.t.Fatalf("dispatch %v: %d %s", action["type"], code, env.Message)
	}
	return decode[explorer.StateSnapshot](s.t, env.Data)
}

func TestExplorerHandler_SessionsAndActions(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/sessions", map[string]string{"mode": "sideways"})
	if code != http.StatusBadRequest {
		t.Fatalf("bad mode: %d %s", code, env.Message)
	}

	id := s.createSession()
	view := s.listing(id)
	if len(view.Directories) != 1 || len(view.Files) != 1 {
		t.Fatalf("root listing = %+v", view)
	}

	snap := s.dispatch(id, map[string]any{
		"type":    explorer.ActionEnterDirectory,
		"payload": map[string]any{"directory": view.Directories[0]},
	})
	if snap.State.CurrentDirectory().ID != "docs" || snap.Version != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	code, env = s.do(http.MethodGet, "/api/sessions/"+id+"/state", nil)
	if code != http.StatusOK || decode[explorer.StateSnapshot](t, env.Data).Version != 1 {
		t.Fatalf("state: %d %s", code, env.Data)
	}

	code, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/actions", map[string]any{"type": "explode"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown action: %d", code)
	}

	code, _ = s.do(http.MethodDelete, "/api/sessions/"+id, nil)
	if code != http.StatusOK {
		t.Fatalf("close: %d", code)
	}
	code, _ = s.do(http.MethodGet, "/api/sessions/"+id+"/listing", nil)
	if code != http.StatusNotFound {
		t.Fatalf("listing of closed session: %d", code)
	}
}

func TestExplorerHandler_UploadAndHistory(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\nrest of the image"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := s.serve(req)
	if code != http.StatusOK {
		t.Fatalf("upload: %d %s", code, env.Message)
	}
	u := decode[explorer.Upload](t, env.Data)
	if u.Filename != "photo.png" || u.Mimetype != "image/png" {
		t.Fatalf("upload = %+v", u)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, env := s.do(http.MethodGet, "/api/uploads/history?session_id="+id, nil)
		page := decode[struct {
			Items []db.UploadRecord `json:"items"`
		}](t, env.Data)
		if len(page.Items) == 1 {
			if page.Items[0].Status != db.UploadStatusDone {
				t.Fatalf("history = %+v", page.Items[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("upload never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(filepath.Join(s.root, "photo.png")); err != nil {
		t.Fatalf("uploaded file: %v", err)
	}

	code, _ = s.serve(httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/uploads", nil))
	if code != http.StatusBadRequest {
		t.Fatalf("upload without file: %d", code)
	}
}

func TestExplorerHandler_DeleteDirectory(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()
	docs := s.listing(id).Directories[0]

	code, _ := s.do(http.MethodPost, "/api/sessions/"+id+"/deletions", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("plan with nothing marked: %d", code)
	}

	s.dispatch(id, map[string]any{
		"type":    explorer.ActionSetMarkedDirectories,
		"payload": map[string]any{"directories": []explorer.DirectoryItem{docs}},
	})
	code, env := s.do(http.MethodPost, "/api/sessions/"+id+"/deletions", map[string]string{"directory_id": "docs"})
	if code != http.StatusOK {
		t.Fatalf("plan: %d %s", code, env.Message)
	}
	plan := decode[explorer.DeletionPlanView](t, env.Data)
	if plan.FileCount != 1 || plan.DirectoryCount != 2 {
		t.Fatalf("plan = %+v", plan)
	}

	code, env = s.do(http.MethodGet, "/api/sessions/"+id+"/deletions/"+plan.ID, nil)
	if code != http.StatusOK || decode[explorer.DeletionPlanView](t, env.Data).ID != plan.ID {
		t.Fatalf("get plan: %d", code)
	}

	code, env = s.do(http.MethodPost, "/api/sessions/"+id+"/deletions/"+plan.ID+"/execute", nil)
	if code != http.StatusOK {
		t.Fatalf("execute: %d %s", code, env.Message)
	}
	if _, err := os.Stat(filepath.Join(s.root, "docs")); !os.IsNotExist(err) {
		t.Fatalf("docs still exists: %v", err)
	}

	code, _ = s.do(http.MethodGet, "/api/sessions/"+id+"/deletions/"+plan.ID, nil)
	if code != http.StatusNotFound {
		t.Fatalf("executed plan lookup: %d", code)
	}
}

func TestExplorerHandler_FoldersMoveAndFiles(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession()

	code, env := s.do(http.MethodPost, "/api/sessions/"+id+"/folders", map[string]string{"name": "locked"})
	if code != http.StatusOK {
		t.Fatalf("create folder: %d %s", code, env.Message)
	}
	code, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/folders", map[string]string{"name": "../x"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid folder name: %d", code)
	}

	readme := s.listing(id).Files[0]
	s.dispatch(id, map[string]any{
		"type":    explorer.ActionMarkSingleFile,
		"payload": map[string]any{"file": readme},
	})

	code, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/move", map[string]string{"what": "files", "target_directory_id": "locked"})
	if code != http.StatusForbidden {
		t.Fatalf("move into read-only directory: %d", code)
	}
	code, env = s.do(http.MethodPost, "/api/sessions/"+id+"/move", map[string]string{"what": "files", "target_directory_id": "docs"})
	if code != http.StatusOK {
		t.Fatalf("move: %d %s", code, env.Message)
	}
	if _, err := os.Stat(filepath.Join(s.root, "docs", "readme.md")); err != nil {
		t.Fatalf("moved file: %v", err)
	}

	code, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/files/delete", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("delete with nothing marked: %d", code)
	}
}
