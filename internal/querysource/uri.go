package querysource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const contentType = "application/xml"

// Location identifies a query output in some store.
type Location struct {
	Scheme string // "file", "s3" or "gs"
	Bucket string // empty for files
	Key    string // object key, or file path for files
}

func (l Location) String() string {
	if l.Scheme == "file" {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseURI parses "s3://bucket/key", "gs://bucket/key", "file:///path" or a
// plain file path.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty query source")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parsing query source %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Key: u.Path}, nil
	case "s3", "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("query source %q needs a bucket and a key", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported query source scheme %q", u.Scheme)
	}
}

// Open returns the store holding loc. For S3 the bucket in s3cfg is replaced
// by the bucket of loc; credentials default to QSYNC_S3_ACCESS_KEY and
// QSYNC_S3_SECRET_KEY.
func Open(ctx context.Context, loc Location, s3cfg S3Config) (Store, error) {
	switch loc.Scheme {
	case "file":
		return NewLocalStore(filepath.Dir(loc.Key)), nil
	case "s3":
		s3cfg.Bucket = loc.Bucket
		if s3cfg.AccessKey == "" {
			s3cfg.AccessKey = os.Getenv("QSYNC_S3_ACCESS_KEY")
		}
		if s3cfg.SecretKey == "" {
			s3cfg.SecretKey = os.Getenv("QSYNC_S3_SECRET_KEY")
		}
		return NewS3Store(ctx, s3cfg)
	case "gs":
		return NewGCSStore(ctx, loc.Bucket)
	default:
		return nil, fmt.Errorf("unsupported query source scheme %q", loc.Scheme)
	}
}

// storeKey is the key of loc within the store returned by Open.
func storeKey(loc Location) string {
	if loc.Scheme == "file" {
		return filepath.Base(loc.Key)
	}
	return loc.Key
}

// Fetch reads the query output at uri.
func Fetch(ctx context.Context, uri string, s3cfg S3Config) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	store, err := Open(ctx, loc, s3cfg)
	if err != nil {
		return nil, err
	}
	data, err := store.Get(ctx, storeKey(loc))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}
	return data, nil
}

// Publish writes a query output to uri.
func Publish(ctx context.Context, uri string, data []byte, s3cfg S3Config) error {
	loc, err := ParseURI(uri)
	if err != nil {
		return err
	}
	store, err := Open(ctx, loc, s3cfg)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, storeKey(loc), data); err != nil {
		return fmt.Errorf("publishing %s: %w", loc, err)
	}
	return nil
}

// FetchChunks reads the query output at uri together with its follow-up
// chunks (see ChunkName), stopping at the first chunk that does not exist.
// The first chunk must exist.
func FetchChunks(ctx context.Context, uri string, s3cfg S3Config) ([][]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	store, err := Open(ctx, loc, s3cfg)
	if err != nil {
		return nil, err
	}

	var outputs [][]byte
	for i := 0; ; i++ {
		data, err := store.Get(ctx, ChunkName(storeKey(loc), i))
		if i > 0 && errors.Is(err, ErrNotFound) {
			return outputs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", ChunkName(loc.String(), i), err)
		}
		outputs = append(outputs, data)
	}
}

// PublishChunks writes outputs to uri and its follow-up chunk names, and
// removes chunks left over from an earlier, larger upload. The first chunk
// is written last.
func PublishChunks(ctx context.Context, uri string, outputs [][]byte, s3cfg S3Config) error {
	if len(outputs) == 0 {
		return fmt.Errorf("publishing %s: no query output", uri)
	}
	loc, err := ParseURI(uri)
	if err != nil {
		return err
	}
	store, err := Open(ctx, loc, s3cfg)
	if err != nil {
		return err
	}
	key := storeKey(loc)

	for i := len(outputs); ; i++ {
		_, err := store.Get(ctx, ChunkName(key, i))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return fmt.Errorf("checking stale chunk of %s: %w", loc, err)
		}
		if err := store.Delete(ctx, ChunkName(key, i)); err != nil {
			return err
		}
	}

	for i := len(outputs) - 1; i >= 0; i-- {
		if err := store.Put(ctx, ChunkName(key, i), outputs[i]); err != nil {
			return fmt.Errorf("publishing %s: %w", ChunkName(loc.String(), i), err)
		}
	}
	return nil
}
