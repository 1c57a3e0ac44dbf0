package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/choraleia/explorer/pkg/explorer"
)

type transferResult struct {
	progress []int
	done     bool
	err      error
}

func runTransfer(t *testing.T, tr *FSTransferer, ctx context.Context, p explorer.Payload, parent explorer.DirectoryRef) transferResult {
	t.Helper()
	var res transferResult
	tr.Transfer(ctx, p, parent, explorer.TransferCallbacks{
		OnProgress: func(pct int) { res.progress = append(res.progress, pct) },
		OnComplete: func() { res.done = true },
		OnError:    func(err error) { res.err = err },
	})
	return res
}

func TestFSTransferer_WritesIntoParent(t *testing.T) {
	c, root := newTestCatalog(t)
	tr := NewFSTransferer(c, false)

	body := strings.Repeat("x", 64*1024)
	res := runTransfer(t, tr, context.Background(), explorer.Payload{
		Filename: "big.bin",
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	}, explorer.DirectoryRef{ID: "photos", Name: "photos"})

	if res.err != nil || !res.done {
		t.Fatalf("transfer = %+v", res)
	}
	got, err := os.ReadFile(filepath.Join(root, "photos", "big.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(body) {
		t.Fatalf("written %d bytes, want %d", len(got), len(body))
	}
	if len(res.progress) == 0 || res.progress[len(res.progress)-1] != 100 {
		t.Fatalf("progress = %v, want to end at 100", res.progress)
	}
	for i := 1; i < len(res.progress); i++ {
		if res.progress[i] <= res.progress[i-1] {
			t.Fatalf("progress not strictly increasing: %v", res.progress)
		}
	}
}

func TestFSTransferer_RefusesOverwrite(t *testing.T) {
	c, root := newTestCatalog(t)

	res := runTransfer(t, NewFSTransferer(c, false), context.Background(), explorer.Payload{
		Filename: "notes.md",
		Size:     3,
		Body:     strings.NewReader("new"),
	}, explorer.Root)
	if res.err == nil {
		t.Fatal("existing file was overwritten")
	}
	if got, _ := os.ReadFile(filepath.Join(root, "notes.md")); string(got) != "# notes" {
		t.Fatalf("existing file changed to %q", got)
	}

	res = runTransfer(t, NewFSTransferer(c, true), context.Background(), explorer.Payload{
		Filename: "notes.md",
		Size:     3,
		Body:     strings.NewReader("new"),
	}, explorer.Root)
	if res.err != nil {
		t.Fatalf("overwrite: %v", res.err)
	}
	if got, _ := os.ReadFile(filepath.Join(root, "notes.md")); string(got) != "new" {
		t.Fatalf("content = %q", got)
	}
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		r.n--
		return copy(p, "chunk"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFSTransferer_RemovesPartialFile(t *testing.T) {
	c, root := newTestCatalog(t)

	res := runTransfer(t, NewFSTransferer(c, false), context.Background(), explorer.Payload{
		Filename: "broken.bin",
		Size:     100,
		Body:     &failingReader{n: 2},
	}, explorer.Root)
	if res.err == nil || !strings.Contains(res.err.Error(), "connection reset") {
		t.Fatalf("err = %v", res.err)
	}
	if res.done {
		t.Fatal("OnComplete called after failure")
	}
	if exists(filepath.Join(root, "broken.bin")) {
		t.Fatal("partial file left behind")
	}
}

func TestFSTransferer_Cancelled(t *testing.T) {
	c, root := newTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runTransfer(t, NewFSTransferer(c, false), ctx, explorer.Payload{
		Filename: "late.bin",
		Size:     4,
		Body:     strings.NewReader("data"),
	}, explorer.Root)
	if res.err == nil {
		t.Fatal("cancelled transfer succeeded")
	}
	if exists(filepath.Join(root, "late.bin")) {
		t.Fatal("cancelled transfer left a file")
	}
}

func TestFSTransferer_InvalidName(t *testing.T) {
	c, _ := newTestCatalog(t)
	res := runTransfer(t, NewFSTransferer(c, false), context.Background(), explorer.Payload{
		Filename: "../escape",
		Body:     strings.NewReader("x"),
	}, explorer.Root)
	if !errors.Is(res.err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", res.err)
	}
}

func TestSniffMimetype(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 5000)...)

	mt, r, err := SniffMimetype(bytes.NewReader(png))
	if err != nil {
		t.Fatal(err)
	}
	if mt != "image/png" {
		t.Fatalf("mimetype = %q", mt)
	}
	replayed, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(replayed, png) {
		t.Fatalf("replayed %d bytes, want %d", len(replayed), len(png))
	}

	mt, r, err = SniffMimetype(strings.NewReader("short"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(mt, "text/plain") {
		t.Fatalf("mimetype = %q", mt)
	}
	if b, _ := io.ReadAll(r); string(b) != "short" {
		t.Fatalf("replayed %q", b)
	}
}

func TestSpoolPayload(t *testing.T) {
	p, err := SpoolPayload("report.pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatal(err)
	}
	f, ok := p.Body.(*spooledFile)
	if !ok {
		t.Fatalf("body is %T", p.Body)
	}
	if p.Filename != "report.pdf" || p.Size != 13 || p.Mimetype != "application/pdf" {
		t.Fatalf("payload = %+v", p)
	}

	b, err := io.ReadAll(p.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "%PDF-1.4 body" {
		t.Fatalf("body = %q", b)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if exists(f.Name()) {
		t.Fatal("spool file not removed on close")
	}
}
