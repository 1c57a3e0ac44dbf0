package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/choraleia/explorer/pkg/explorer"
	fsimpl "github.com/choraleia/explorer/pkg/service/fs"
	"github.com/choraleia/explorer/pkg/utils"
	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit is how much of a payload is buffered for content detection.
const sniffLimit = 3072

// FSTransferer writes upload payloads into the catalog's filesystem.
type FSTransferer struct {
	catalog   *CatalogService
	overwrite bool
	logger    *slog.Logger
}

func NewFSTransferer(catalog *CatalogService, overwrite bool) *FSTransferer {
	return &FSTransferer{catalog: catalog, overwrite: overwrite, logger: utils.GetLogger()}
}

// Transfer streams p into parent and reports whole-percent progress. A
// partially written file is removed when the copy fails.
func (t *FSTransferer) Transfer(ctx context.Context, p explorer.Payload, parent explorer.DirectoryRef, cb explorer.TransferCallbacks) {
	if err := t.transfer(ctx, p, parent, cb.OnProgress); err != nil {
		cb.OnError(err)
		return
	}
	cb.OnComplete()
}

func (t *FSTransferer) transfer(ctx context.Context, p explorer.Payload, parent explorer.DirectoryRef, onProgress func(int)) error {
	if p.Body == nil {
		return errors.New("upload has no content")
	}
	if closer, ok := p.Body.(io.Closer); ok {
		defer closer.Close()
	}

	dst, err := t.catalog.FilePath(parent.ID, p.Filename)
	if err != nil {
		return err
	}
	fs := t.catalog.FileSystem()

	w, err := fs.OpenWrite(ctx, dst, fsimpl.OpenWriteOptions{Overwrite: t.overwrite})
	if err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	last := -1
	pr := &progressReader{r: &ctxReader{ctx: ctx, r: p.Body}, onProgress: func(total int64) {
		if p.Size <= 0 {
			return
		}
		pct := int(total * 100 / p.Size)
		if pct > 100 {
			pct = 100
		}
		if pct != last {
			last = pct
			onProgress(pct)
		}
	}}

	_, copyErr := io.Copy(w, pr)
	closeErr := w.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := fs.Remove(context.WithoutCancel(ctx), dst); rmErr != nil {
			t.logger.Warn("Failed to remove partial upload", "path", dst, "error", rmErr)
		}
		return fmt.Errorf("failed to copy: %w", copyErr)
	}
	return nil
}

// progressReader wraps a reader and calls onProgress with cumulative bytes read
type progressReader struct {
	r          io.Reader
	onProgress func(totalBytes int64)
	total      int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.total += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.total)
		}
	}
	return n, err
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// SniffMimetype detects the content type of body. The returned reader
// replays the sniffed prefix, so it yields the full content.
func SniffMimetype(body io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	return mt.String(), io.MultiReader(bytes.NewReader(head), body), nil
}

// spooledFile is a temp file that deletes itself on Close.
type spooledFile struct {
	*os.File
}

func (f *spooledFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// SpoolPayload copies r into a temp file so the payload outlives the request
// that carried it. The transfer closes the body, which removes the file.
func SpoolPayload(filename string, r io.Reader) (explorer.Payload, error) {
	mt, body, err := SniffMimetype(r)
	if err != nil {
		return explorer.Payload{}, fmt.Errorf("failed to read upload: %w", err)
	}

	tmp, err := os.CreateTemp("", "explorer-upload-*")
	if err != nil {
		return explorer.Payload{}, fmt.Errorf("failed to spool upload: %w", err)
	}
	f := &spooledFile{File: tmp}

	size, err := io.Copy(tmp, body)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		return explorer.Payload{}, fmt.Errorf("failed to spool upload: %w", err)
	}

	return explorer.Payload{
		Filename: filename,
		Size:     size,
		Mimetype: mt,
		Body:     f,
	}, nil
}

var _ explorer.Transferer = (*FSTransferer)(nil)
