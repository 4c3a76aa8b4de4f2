package handlers

import (
	"context"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/social"
	"github.com/Ramsey-B/clover/pkg/storage"
)

// uploadImages pushes every attached file to the blob store and
// returns their public URLs. Any failure aborts the whole batch so
// content creation stays all-or-nothing.
func uploadImages(ctx context.Context, blob storage.BlobStore, prefix string, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, social.Upstream(err, "failed to read uploaded image")
		}

		key := prefix + "/" + uuid.New().String() + filepath.Ext(fh.Filename)
		url, err := blob.Upload(ctx, key, f, fh.Size, fh.Header.Get("Content-Type"))
		f.Close()
		if err != nil {
			return nil, social.Upstream(err, "failed to store uploaded image")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// deleteImages removes stored objects once their content is
// tombstoned. Failures are logged and swallowed: the tombstone is the
// source of truth and an orphaned object is harmless.
func deleteImages(ctx context.Context, blob storage.BlobStore, logger ectologger.Logger, urls []string) {
	for _, raw := range urls {
		key, ok := blobKey(raw)
		if !ok {
			continue
		}
		if err := blob.Delete(ctx, key); err != nil {
			logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to delete stored image")
		}
	}
}

// blobKey recovers the object key from a public URL. Keys are always
// two path segments deep (prefix/name), whatever host or bucket path
// the store prepended.
func blobKey(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", false
	}
	key, err := url.PathUnescape(strings.Join(segments[len(segments)-2:], "/"))
	if err != nil {
		return "", false
	}
	return key, true
}

// formImages returns the "images" files of a multipart request, or nil
// when the request carries no multipart body.
func formImages(form *multipart.Form, err error) []*multipart.FileHeader {
	if err != nil || form == nil {
		return nil
	}
	return form.File["images"]
}
