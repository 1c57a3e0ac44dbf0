package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Endpoint describes an S3 compatible bucket. Endpoint is only needed for
// non-AWS servers such as MinIO.
type S3Endpoint struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// s3API is the part of *s3.Client the filesystem uses.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// NewS3Client builds a path-style client for ep.
func NewS3Client(ctx context.Context, ep S3Endpoint) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(ep.Region)}
	if ep.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ep.AccessKey, ep.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep.Endpoint != "" {
			o.BaseEndpoint = aws.String(ep.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3FileSystem maps absolute paths onto object keys of one bucket.
//
// Directories are key prefixes. An empty directory is kept alive by a
// zero-length marker object whose key ends in "/".
type S3FileSystem struct {
	client s3API
	bucket string
}

func NewS3FileSystem(client s3API, bucket string) (*S3FileSystem, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is empty")
	}
	return &S3FileSystem{client: client, bucket: bucket}, nil
}

// objectKey turns an absolute path into a key; the root is "".
func objectKey(p string) (string, error) {
	clean, err := normalizeRemotePath(p)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(path.Clean(clean), "/"), nil
}

func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func dirEntry(key string) *FileEntry {
	return &FileEntry{
		Name:  path.Base("/" + key),
		Path:  "/" + key,
		IsDir: true,
		Mode:  (os.ModeDir | 0o755).String(),
	}
}

func (s *S3FileSystem) ListDir(ctx context.Context, p string, opts ListDirOptions) (*ListDirResponse, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, err
	}
	st, err := s.Stat(ctx, "/"+key)
	if err != nil {
		return nil, err
	}
	if !st.IsDir {
		return nil, fmt.Errorf("list %s: not a directory", st.Path)
	}

	prefix := dirPrefix(key)
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	entries := make([]FileEntry, 0)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", st.Path, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" || (!opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				continue
			}
			entries = append(entries, *dirEntry(prefix + name))
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			name := strings.TrimPrefix(k, prefix)
			if name == "" || (!opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				continue
			}
			entries = append(entries, FileEntry{
				Name:    name,
				Path:    "/" + k,
				Size:    aws.ToInt64(obj.Size),
				Mode:    os.FileMode(0o644).String(),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	sortEntries(entries)

	return &ListDirResponse{Path: st.Path, Entries: entries}, nil
}

func (s *S3FileSystem) Stat(ctx context.Context, p string) (*FileEntry, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		e := dirEntry("")
		e.Name = "/"
		return e, nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return &FileEntry{
			Name:    path.Base(key),
			Path:    "/" + key,
			Size:    aws.ToInt64(head.ContentLength),
			Mode:    os.FileMode(0o644).String(),
			ModTime: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isS3NotFound(err) {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if len(out.Contents) == 0 {
		return nil, &os.PathError{Op: "stat", Path: p, Err: os.ErrNotExist}
	}
	return dirEntry(key), nil
}

// MkdirAll writes a marker for the directory and every missing parent.
func (s *S3FileSystem) MkdirAll(ctx context.Context, p string) error {
	key, err := objectKey(p)
	if err != nil {
		return err
	}
	if key == "" {
		return nil
	}

	parts := strings.Split(key, "/")
	for i := range parts {
		dir := strings.Join(parts[:i+1], "/")
		st, err := s.Stat(ctx, "/"+dir)
		if err == nil {
			if !st.IsDir {
				return &os.PathError{Op: "mkdir", Path: "/" + dir, Err: errors.New("not a directory")}
			}
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(dir + "/"),
			Body:          bytes.NewReader(nil),
			ContentLength: aws.Int64(0),
		}); err != nil {
			return fmt.Errorf("mkdir %s: %w", "/"+dir, err)
		}
	}
	return nil
}

// Remove deletes one object, or the marker of an empty directory.
func (s *S3FileSystem) Remove(ctx context.Context, p string) error {
	key, err := objectKey(p)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("remove %s: cannot remove the bucket root", p)
	}

	st, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !st.IsDir {
		return s.deleteKey(ctx, key)
	}

	marker := key + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(marker),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) != marker {
			return &os.PathError{Op: "remove", Path: p, Err: errors.New("directory not empty")}
		}
	}
	return s.deleteKey(ctx, marker)
}

func (s *S3FileSystem) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Rename copies every object below from to its new key and deletes the
// original. It refuses to replace an existing item. Directory renames are
// not atomic.
func (s *S3FileSystem) Rename(ctx context.Context, from string, to string) error {
	fromKey, err := objectKey(from)
	if err != nil {
		return err
	}
	toKey, err := objectKey(to)
	if err != nil {
		return err
	}
	if fromKey == "" || toKey == "" {
		return fmt.Errorf("rename %s to %s: cannot rename the bucket root", from, to)
	}

	if _, err := s.Stat(ctx, to); err == nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: os.ErrExist}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	st, err := s.Stat(ctx, from)
	if err != nil {
		return err
	}
	if !st.IsDir {
		return s.move(ctx, fromKey, toKey)
	}

	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fromKey + "/"),
	})
	var keys []string
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("rename %s: %w", from, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	for _, k := range keys {
		if err := s.move(ctx, k, toKey+strings.TrimPrefix(k, fromKey)); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3FileSystem) move(ctx context.Context, fromKey, toKey string) error {
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(copySource(s.bucket, fromKey)),
	}); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", fromKey, toKey, err)
	}
	return s.deleteKey(ctx, fromKey)
}

func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

func (s *S3FileSystem) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &os.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return out.Body, nil
}

// OpenWrite buffers the content in a temp file; the object is stored when
// the writer is closed.
func (s *S3FileSystem) OpenWrite(ctx context.Context, p string, opts OpenWriteOptions) (io.WriteCloser, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("open %s: is the bucket root", p)
	}
	if !opts.Overwrite {
		if _, err := s.Stat(ctx, p); err == nil {
			return nil, &os.PathError{Op: "open", Path: p, Err: os.ErrExist}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	tmp, err := os.CreateTemp("", "explorer-s3-*")
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, fs: s, key: key, tmp: tmp}, nil
}

type s3Writer struct {
	ctx context.Context
	fs  *S3FileSystem
	key string
	tmp *os.File
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *s3Writer) Close() error {
	defer func() {
		_ = w.tmp.Close()
		_ = os.Remove(w.tmp.Name())
	}()

	size, err := w.tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = w.fs.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.fs.bucket),
		Key:           aws.String(w.key),
		Body:          w.tmp,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", w.key, err)
	}
	return nil
}

var _ FileSystem = (*S3FileSystem)(nil)
