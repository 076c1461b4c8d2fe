package s3fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func (b *Backend) Open(ctx context.Context, p string, flags int, attrs *backend.FileAttributes) (backend.Handle, error) {
	p = path.Clean("/" + p)
	state := &openState{
		path:    p,
		key:     b.key(p),
		writing: flags&(os.O_WRONLY|os.O_RDWR) != 0,
		appends: flags&os.O_APPEND != 0,
	}

	existing, statErr := b.statPath(ctx, p)
	exists := statErr == nil
	if exists && existing.IsDir() {
		return "", backend.ErrorFailure(p + ": is a directory")
	}

	switch {
	case exists && flags&os.O_EXCL != 0:
		return "", backend.ErrorFailure(p + ": file exists")
	case !exists && flags&os.O_CREATE == 0:
		return "", statErr
	}

	// Write handles buffer the whole object: S3 cannot patch a byte range
	// in place. Existing content is loaded unless the open truncates.
	if state.writing {
		if exists && flags&os.O_TRUNC == 0 {
			content, err := b.download(ctx, state)
			if err != nil {
				return "", err
			}
			state.buf = content
		}
		// A created-but-empty file must survive an immediate close.
		state.dirty = !exists || flags&os.O_TRUNC != 0
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.handles[h] = state
	b.mu.Unlock()
	return h, nil
}

func (b *Backend) download(ctx context.Context, state *openState) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(state.key),
	})
	if err != nil {
		return nil, wrapErr(state.path, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapErr(state.path, err)
	}
	return content, nil
}

// Close flushes buffered writes as a single PUT.
func (b *Backend) Close(ctx context.Context, h backend.Handle) error {
	b.mu.Lock()
	state, ok := b.handles[h]
	delete(b.handles, h)
	b.mu.Unlock()

	if !ok {
		return backend.ErrorInvalidHandle(h)
	}
	if !state.dirty {
		return nil
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(state.key),
		Body:   bytes.NewReader(state.buf),
	})
	return wrapErr(state.path, err)
}

func (b *Backend) Read(ctx context.Context, h backend.Handle, offset uint64, length uint32) ([]byte, error) {
	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	if state.dir {
		return nil, backend.ErrorInvalidHandle(h)
	}

	// A zero-length read yields zero bytes without touching S3. An empty
	// range cannot be expressed in a Range header: "bytes=0--1" underflows
	// to the full object.
	if length == 0 {
		return []byte{}, nil
	}

	// Handles opened for writing read from the local buffer so a session
	// sees its own unflushed data.
	if state.writing {
		if offset >= uint64(len(state.buf)) {
			return nil, backend.ErrorEOF()
		}
		end := offset + uint64(length)
		if end > uint64(len(state.buf)) {
			end = uint64(len(state.buf))
		}
		out := make([]byte, end-offset)
		copy(out, state.buf[offset:end])
		return out, nil
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(state.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)-1)),
	})
	if err != nil {
		// A range past the end of the object means the client read to EOF.
		if isInvalidRange(err) {
			return nil, backend.ErrorEOF()
		}
		return nil, wrapErr(state.path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapErr(state.path, err)
	}
	if len(data) == 0 {
		return nil, backend.ErrorEOF()
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, h backend.Handle, offset uint64, data []byte) error {
	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	if state.dir || !state.writing {
		return backend.ErrorInvalidHandle(h)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if state.appends {
		offset = uint64(len(state.buf))
	}
	if need := offset + uint64(len(data)); need > uint64(len(state.buf)) {
		grown := make([]byte, need)
		copy(grown, state.buf)
		state.buf = grown
	}
	copy(state.buf[offset:], data)
	state.dirty = true
	return nil
}

// Lstat equals Stat because the bucket has no symlinks.
func (b *Backend) Lstat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	return b.statPath(ctx, p)
}

func (b *Backend) Stat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	return b.statPath(ctx, p)
}

func (b *Backend) Fstat(ctx context.Context, h backend.Handle) (*backend.FileAttributes, error) {
	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	if state.writing {
		return fileAttrs(uint64(len(state.buf)), nil), nil
	}
	return b.statPath(ctx, state.path)
}

// Setstat accepts and discards mode, ownership, and timestamps, which have
// no S3 equivalent. Rejecting them would break clients that chmod after
// upload as a matter of course. Size changes are honored.
func (b *Backend) Setstat(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	if attrs == nil || attrs.Size == nil {
		return nil
	}

	current, err := b.statPath(ctx, p)
	if err != nil {
		return err
	}
	if current.IsDir() {
		return backend.ErrorFailure(p + ": is a directory")
	}
	if current.Size != nil && *current.Size == *attrs.Size {
		return nil
	}

	state := &openState{path: path.Clean("/" + p), key: b.key(p)}
	content, err := b.download(ctx, state)
	if err != nil {
		return err
	}
	resized := make([]byte, *attrs.Size)
	copy(resized, content)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(state.key),
		Body:   bytes.NewReader(resized),
	})
	return wrapErr(p, err)
}

func (b *Backend) Fsetstat(ctx context.Context, h backend.Handle, attrs *backend.FileAttributes) error {
	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	if attrs == nil || attrs.Size == nil {
		return nil
	}

	if state.writing {
		b.mu.Lock()
		defer b.mu.Unlock()
		resized := make([]byte, *attrs.Size)
		copy(resized, state.buf)
		state.buf = resized
		state.dirty = true
		return nil
	}
	return b.Setstat(ctx, state.path, attrs)
}

func (b *Backend) Realpath(ctx context.Context, p string) (string, error) {
	return path.Clean("/" + p), nil
}
