package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"google.golang.org/genai"

	"mnemosyne/internal/domain/artifact"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

const textContentType = "text/plain; charset=utf-8"

// ArtifactRepository implements artifact.Repository over an S3-compatible
// object store. Each version is one immutable object named
// {app}/{user}/{session}/{filename}/{version}; the MIME type rides on the
// object's content-type metadata and decides how a load is reconstructed.
type ArtifactRepository struct {
	client *minio.Client
	bucket string
	log    *logger.Logger

	// versionLocks serializes version allocation per key so concurrent
	// saves observe a strictly increasing, gap-free sequence.
	versionMu    sync.Mutex
	versionLocks map[string]*sync.Mutex
}

// NewArtifactRepository creates an object-storage artifact repository over
// an existing bucket.
func NewArtifactRepository(client *minio.Client, bucket string) *ArtifactRepository {
	return &ArtifactRepository{
		client:       client,
		bucket:       bucket,
		log:          logger.Get().With("component", "objectstore_artifact_repository"),
		versionLocks: make(map[string]*sync.Mutex),
	}
}

// Save allocates the next version for the key and writes one object.
func (r *ArtifactRepository) Save(ctx context.Context, key artifact.Key, part *genai.Part) (int, error) {
	unlock := r.lockKey(key.Path())
	defer unlock()

	versions, err := r.ListVersions(ctx, key)
	if err != nil {
		return 0, err
	}

	version := 0
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}

	data, contentType := encodePart(part)
	objectName := fmt.Sprintf("%s/%d", key.Path(), version)

	_, err = r.client.PutObject(ctx, r.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, errors.Wrap(err, "failed to put artifact object")
	}

	return version, nil
}

// Load reads the requested version, or the highest existing one when
// version is nil, reconstructing text or binary form from the stored
// content type.
func (r *ArtifactRepository) Load(ctx context.Context, key artifact.Key, version *int) (*genai.Part, error) {
	v := 0
	if version != nil {
		v = *version
	} else {
		versions, err := r.ListVersions(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, errors.Wrap(errors.ErrNotFound, "artifact not found")
		}
		v = versions[len(versions)-1]
	}

	objectName := fmt.Sprintf("%s/%d", key.Path(), v)
	obj, err := r.client.GetObject(ctx, r.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artifact object")
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Wrap(errors.ErrNotFound, "artifact version not found")
		}
		return nil, errors.Wrap(err, "failed to stat artifact object")
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read artifact object")
	}

	return decodePart(data, stat.ContentType), nil
}

// ListKeys returns the sorted union of filenames under the session
// namespace and the user namespace of (app, user).
func (r *ArtifactRepository) ListKeys(ctx context.Context, appName, userID, sessionID string) ([]string, error) {
	sessionPrefix := appName + "/" + userID + "/" + sessionID + "/"
	userPrefix := appName + "/" + userID + "/user/"

	seen := make(map[string]struct{})
	for _, prefix := range []string{sessionPrefix, userPrefix} {
		for object := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				return nil, errors.Wrap(object.Err, "failed to list artifact objects")
			}
			rest := strings.TrimPrefix(object.Key, prefix)
			// Strip the trailing /{version} segment.
			if idx := strings.LastIndex(rest, "/"); idx > 0 {
				seen[rest[:idx]] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes every version object for the key. Absent keys are a
// no-op.
func (r *ArtifactRepository) Delete(ctx context.Context, key artifact.Key) error {
	prefix := key.Path() + "/"
	for object := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return errors.Wrap(object.Err, "failed to list artifact objects")
		}
		if err := r.client.RemoveObject(ctx, r.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrap(err, "failed to remove artifact object")
		}
	}
	return nil
}

// ListVersions parses the version segment of every object under the key's
// prefix and returns them in ascending order.
func (r *ArtifactRepository) ListVersions(ctx context.Context, key artifact.Key) ([]int, error) {
	prefix := key.Path() + "/"

	var versions []int
	for object := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, errors.Wrap(object.Err, "failed to list artifact objects")
		}
		v, err := strconv.Atoi(strings.TrimPrefix(object.Key, prefix))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}

	sort.Ints(versions)
	return versions, nil
}

func (r *ArtifactRepository) lockKey(path string) func() {
	r.versionMu.Lock()
	m, ok := r.versionLocks[path]
	if !ok {
		m = &sync.Mutex{}
		r.versionLocks[path] = m
	}
	r.versionMu.Unlock()

	m.Lock()
	return m.Unlock
}

func encodePart(part *genai.Part) ([]byte, string) {
	if part.InlineData != nil {
		contentType := part.InlineData.MIMEType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return part.InlineData.Data, contentType
	}
	return []byte(part.Text), textContentType
}

func decodePart(data []byte, contentType string) *genai.Part {
	if strings.HasPrefix(contentType, "text/plain") {
		return genai.NewPartFromText(string(data))
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			Data:     data,
			MIMEType: contentType,
		},
	}
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
