package s3fs

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func (b *Backend) Opendir(ctx context.Context, p string) (backend.Handle, error) {
	p = path.Clean("/" + p)

	attrs, err := b.statPath(ctx, p)
	if err != nil {
		return "", err
	}
	if !attrs.IsDir() {
		return "", backend.ErrorFailure(p + ": not a directory")
	}

	entries, err := b.list(ctx, p)
	if err != nil {
		return "", err
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.handles[h] = &openState{path: p, dir: true, entries: entries}
	b.mu.Unlock()
	return h, nil
}

// list snapshots a directory. Delimited listing turns common prefixes into
// subdirectories and keys into files; the directory's own marker object is
// dropped from the result.
func (b *Backend) list(ctx context.Context, p string) ([]backend.DirEntry, error) {
	prefix := b.key(p)
	if prefix != "" {
		prefix += "/"
	}

	var entries []backend.DirEntry
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapErr(p, err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			attrs := dirAttrs(nil)
			entries = append(entries, backend.DirEntry{
				Name:     name,
				LongName: backend.FormatLongName(name, attrs),
				Attrs:    attrs,
			})
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				// The directory's own marker.
				continue
			}
			attrs := fileAttrs(uint64(aws.ToInt64(obj.Size)), obj.LastModified)
			entries = append(entries, backend.DirEntry{
				Name:     name,
				LongName: backend.FormatLongName(name, attrs),
				Attrs:    attrs,
			})
		}
	}
	return entries, nil
}

func (b *Backend) Readdir(ctx context.Context, h backend.Handle) ([]backend.DirEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.handles[h]
	if !ok || !state.dir {
		return nil, backend.ErrorInvalidHandle(h)
	}
	if state.pos >= len(state.entries) {
		return nil, backend.ErrorEOF()
	}

	end := state.pos + readdirBatchSize
	if end > len(state.entries) {
		end = len(state.entries)
	}
	batch := state.entries[state.pos:end]
	state.pos = end
	return batch, nil
}

// Mkdir writes a zero-byte marker object so the directory is visible while
// empty.
func (b *Backend) Mkdir(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	p = path.Clean("/" + p)

	if _, err := b.statPath(ctx, p); err == nil {
		return backend.ErrorFailure(p + ": file exists")
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p) + "/"),
	})
	return wrapErr(p, err)
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	p = path.Clean("/" + p)

	attrs, err := b.statPath(ctx, p)
	if err != nil {
		return err
	}
	if attrs.IsDir() {
		return backend.ErrorFailure(p + ": is a directory")
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	return wrapErr(p, err)
}

func (b *Backend) Rmdir(ctx context.Context, p string) error {
	p = path.Clean("/" + p)

	attrs, err := b.statPath(ctx, p)
	if err != nil {
		return err
	}
	if !attrs.IsDir() {
		return backend.ErrorFailure(p + ": not a directory")
	}

	entries, err := b.list(ctx, p)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return backend.ErrorFailure(p + ": directory not empty")
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p) + "/"),
	})
	return wrapErr(p, err)
}

// Rename copies then deletes; S3 has no native move. Directory renames
// would need a copy per descendant object and are not offered.
func (b *Backend) Rename(ctx context.Context, oldpath, newpath string) error {
	oldpath = path.Clean("/" + oldpath)
	newpath = path.Clean("/" + newpath)

	attrs, err := b.statPath(ctx, oldpath)
	if err != nil {
		return err
	}
	if attrs.IsDir() {
		return backend.ErrorNotSupported("directory rename on s3")
	}
	if _, err := b.statPath(ctx, newpath); err == nil {
		return backend.ErrorFailure(newpath + ": file exists")
	}

	source := b.bucket + "/" + b.key(oldpath)
	_, err = b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(b.key(newpath)),
		CopySource: aws.String(url.PathEscape(source)),
	})
	if err != nil {
		return wrapErr(oldpath, err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(oldpath)),
	})
	return wrapErr(oldpath, err)
}
