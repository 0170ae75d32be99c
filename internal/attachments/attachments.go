// Package attachments places uploaded files of record file fields in storage.
// Uploads arrive before a new record has an id, so they are first stored under
// a temporary key and moved below the record's id once it was saved.
package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/storage"
)

// TempPrefix is the key prefix of uploads not yet attached to a saved record.
const TempPrefix = "tmp/"

// InstanceIDPath returns "<namespace>/<type>/<id>/<target>". Without a target
// the file is named "<type>_<id><ext>" after the lowercased extension of source.
// A zero id stands for an unsaved record and is replaced by a random token.
func InstanceIDPath(namespace, typeName string, id int64, source, target string) string {
	iid := strconv.FormatInt(id, 10)
	if id == 0 {
		iid = uuid.NewString()
	}
	if target == "" {
		target = typeName + "_" + iid + path.Ext(strings.ToLower(source))
	}
	return path.Join(namespace, typeName, iid, target)
}

// IsTemporary reports whether key still waits to be moved.
func IsTemporary(key string) bool {
	return strings.HasPrefix(key, TempPrefix)
}

// TempKey returns a fresh temporary key keeping the base name of filename.
func TempKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	return TempPrefix + uuid.NewString() + "/" + base
}

// SaveUpload stores a multipart upload under a temporary key.
func SaveUpload(ctx context.Context, s storage.Storage, fh *multipart.FileHeader) (*storage.Object, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	obj, err := s.Save(ctx, TempKey(fh.Filename), f, fh.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
	}
	return obj, nil
}

// MoveToInstanceIDPath moves the file stored under key to the instance id path
// of rec and returns the new key. The record must be saved.
func MoveToInstanceIDPath(ctx context.Context, s storage.Storage, desc *record.Descriptor, rec record.Record, key, contentType string) (string, error) {
	if rec.PK() == 0 {
		return "", fmt.Errorf("cannot move %s: %s is not saved", key, desc.Key())
	}
	dst := InstanceIDPath(desc.Namespace, desc.Name, rec.PK(), path.Base(key), "")
	if err := storage.Move(ctx, s, key, dst, contentType); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", key, dst, err)
	}
	slog.Debug("attachment moved", "from", key, "to", dst, "type", desc.Key(), "id", rec.PK())
	return dst, nil
}
