// Package s3fs implements a storage backend on an S3 bucket.
//
// Client paths map to object keys under an optional key prefix. Directories
// are implied by key structure the way the S3 console treats them: a
// zero-byte "name/" marker object makes an empty directory visible, and any
// key below a prefix makes that prefix a directory. Reads are served with
// ranged GETs so large objects are never pulled whole; writes accumulate in
// memory and are flushed as a single PUT when the handle closes, since S3
// objects cannot be written in place.
package s3fs

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// readdirBatchSize is the number of entries returned per READDIR call.
const readdirBatchSize = 64

// dirMode and fileMode are the synthetic permissions reported for bucket
// entries. S3 has no POSIX modes.
const (
	dirMode  = 0o755
	fileMode = 0o644
)

// Backend serves a bucket (or a prefix inside one) over the file transfer
// protocol.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string

	mu      sync.Mutex
	handles map[backend.Handle]*openState
}

type openState struct {
	path string
	key  string

	writing bool
	appends bool
	buf     []byte
	dirty   bool

	dir     bool
	entries []backend.DirEntry
	pos     int
}

// New creates an S3 backend. The prefix scopes all keys; it may be empty to
// serve the whole bucket.
func New(client *s3.Client, bucket, prefix string) *Backend {
	return &Backend{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		handles: map[backend.Handle]*openState{},
	}
}

func (b *Backend) InitSession(ctx context.Context, clientVersion uint32, identity backend.Identity, clientExts []backend.Extension) ([]backend.Extension, error) {
	return nil, nil
}

func (b *Backend) ResolvePath(root, p string) (string, error) {
	if root == "" {
		root = "/"
	}
	return path.Join(root, path.Clean("/"+p)), nil
}

// key maps a clean absolute client path to an object key.
func (b *Backend) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if b.prefix == "" {
		return p
	}
	if p == "" {
		return b.prefix
	}
	return b.prefix + "/" + p
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

func wrapErr(p string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *backend.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if isNotFound(err) {
		return backend.ErrorNotFound(p)
	}
	return backend.ErrorFailure(err.Error())
}

func fileAttrs(size uint64, modified *time.Time) *backend.FileAttributes {
	perm := uint32(backend.ModeRegular | fileMode)
	attrs := &backend.FileAttributes{
		Size:        &size,
		Permissions: &perm,
	}
	if modified != nil {
		mtime := uint32(modified.Unix())
		attrs.AccessTime = &mtime
		attrs.ModifyTime = &mtime
	}
	return attrs
}

func dirAttrs(modified *time.Time) *backend.FileAttributes {
	perm := uint32(backend.ModeDir | dirMode)
	attrs := &backend.FileAttributes{
		Size:        backend.U64(4096),
		Permissions: &perm,
	}
	if modified != nil {
		mtime := uint32(modified.Unix())
		attrs.AccessTime = &mtime
		attrs.ModifyTime = &mtime
	}
	return attrs
}

// statPath resolves a path to attributes: a HEAD for the object, falling
// back to a one-key listing to detect implied directories.
func (b *Backend) statPath(ctx context.Context, p string) (*backend.FileAttributes, error) {
	if path.Clean("/"+p) == "/" {
		return dirAttrs(nil), nil
	}

	key := b.key(p)
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return fileAttrs(uint64(aws.ToInt64(head.ContentLength)), head.LastModified), nil
	}
	if !isNotFound(err) {
		return nil, wrapErr(p, err)
	}

	list, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, wrapErr(p, err)
	}
	if len(list.Contents) == 0 && len(list.CommonPrefixes) == 0 {
		return nil, backend.ErrorNotFound(p)
	}
	return dirAttrs(nil), nil
}

func (b *Backend) getHandle(h backend.Handle) (*openState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.handles[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
	}
	return state, nil
}
