package artifact

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

var _ Store = (*MinioStore)(nil)

// MinioStore keeps artifacts in an S3-compatible bucket using the same
// per-document key layout as the filesystem store. Object writes are atomic,
// so no folder locking is needed.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioOptions configures the object-store backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logrus.Infof("created artifact bucket %q", opts.Bucket)
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioStore) key(caseID, folder, name string) string {
	return path.Join(caseID, documentsDir, folder, name)
}

func (s *MinioStore) WriteOriginal(ctx context.Context, caseID, folder, ext string, content []byte) error {
	return s.put(ctx, s.key(caseID, folder, OriginalPrefix+ext), content)
}

func (s *MinioStore) ReadOriginal(ctx context.Context, caseID, folder string) ([]byte, string, error) {
	prefix := s.key(caseID, folder, OriginalPrefix+".")
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, "", obj.Err
		}
		data, err := s.get(ctx, obj.Key)
		if err != nil {
			return nil, "", err
		}
		return data, path.Ext(obj.Key), nil
	}

	return nil, "", ErrNotFound
}

func (s *MinioStore) WriteExtractedText(ctx context.Context, caseID, folder string, text []byte) error {
	return s.put(ctx, s.key(caseID, folder, ExtractedTextFile), text)
}

func (s *MinioStore) ReadExtractedText(ctx context.Context, caseID, folder string) ([]byte, error) {
	return s.get(ctx, s.key(caseID, folder, ExtractedTextFile))
}

func (s *MinioStore) WriteMetadata(ctx context.Context, caseID, folder string, meta []byte) error {
	return s.put(ctx, s.key(caseID, folder, MetadataFile), meta)
}

func (s *MinioStore) ReadMetadata(ctx context.Context, caseID, folder string) ([]byte, error) {
	return s.get(ctx, s.key(caseID, folder, MetadataFile))
}

func (s *MinioStore) HasOriginal(ctx context.Context, caseID, folder string) (bool, error) {
	_, _, err := s.ReadOriginal(ctx, caseID, folder)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MinioStore) HasExtractedText(ctx context.Context, caseID, folder string) (bool, error) {
	return s.has(ctx, s.key(caseID, folder, ExtractedTextFile))
}

func (s *MinioStore) HasMetadata(ctx context.Context, caseID, folder string) (bool, error) {
	return s.has(ctx, s.key(caseID, folder, MetadataFile))
}

func (s *MinioStore) ListFolders(ctx context.Context, caseID string) ([]FolderInfo, error) {
	prefix := path.Join(caseID, documentsDir) + "/"

	seen := make(map[string]int)
	var folders []FolderInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		rest := strings.TrimPrefix(obj.Key, prefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) < 2 {
			continue
		}
		name := parts[0]
		if idx, ok := seen[name]; ok {
			if obj.LastModified.After(folders[idx].ModTime) {
				folders[idx].ModTime = obj.LastModified
			}
			continue
		}
		seen[name] = len(folders)
		folders = append(folders, FolderInfo{Name: name, ModTime: obj.LastModified})
	}

	return folders, nil
}

func (s *MinioStore) DeleteFolder(ctx context.Context, caseID, folder string) error {
	prefix := path.Join(caseID, documentsDir, folder) + "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MinioStore) ArchiveFolder(ctx context.Context, caseID, folder string) error {
	prefix := path.Join(caseID, documentsDir, folder) + "/"

	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	tw := tar.NewWriter(bw)

	found := false
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		data, err := s.get(ctx, obj.Key)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name: strings.TrimPrefix(obj.Key, prefix),
			Mode: 0644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
		found = true
	}

	if !found {
		return ErrNotFound
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	trashKey := path.Join(caseID, trashDir, folder+".tar.br")
	if err := s.put(ctx, trashKey, buf.Bytes()); err != nil {
		return err
	}

	logrus.Infof("archived artifact folder %s/%s to %s", caseID, folder, trashKey)
	return s.DeleteFolder(ctx, caseID, folder)
}

func (s *MinioStore) PurgeTrash(ctx context.Context, caseID string, olderThan time.Time) (int, error) {
	prefix := path.Join(caseID, trashDir) + "/"

	removed := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, obj.Err
		}
		if obj.LastModified.After(olderThan) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			logrus.Warnf("could not purge trash object %s: %v", obj.Key, err)
			continue
		}
		removed++
	}

	return removed, nil
}

func (s *MinioStore) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (s *MinioStore) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *MinioStore) has(ctx context.Context, key string) (bool, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return info.Size > 0, nil
}
