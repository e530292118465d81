package artifact

import (
	"archive/tar"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
)

var _ Store = (*FSStore)(nil)

// FSStore keeps artifacts on the local filesystem under a root data
// directory. Writes are exclusive per document folder; reads take no lock.
type FSStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFSStore(root string) *FSStore {
	return &FSStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *FSStore) folderLock(caseID, folder string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := caseID + "/" + folder
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FSStore) folderPath(caseID, folder string) string {
	return filepath.Join(s.root, caseID, documentsDir, folder)
}

func (s *FSStore) WriteOriginal(ctx context.Context, caseID, folder, ext string, content []byte) error {
	return s.write(caseID, folder, OriginalPrefix+ext, content)
}

func (s *FSStore) ReadOriginal(ctx context.Context, caseID, folder string) ([]byte, string, error) {
	dir := s.folderPath(caseID, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), OriginalPrefix+".") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, "", err
			}
			return data, filepath.Ext(e.Name()), nil
		}
	}

	return nil, "", ErrNotFound
}

func (s *FSStore) WriteExtractedText(ctx context.Context, caseID, folder string, text []byte) error {
	return s.write(caseID, folder, ExtractedTextFile, text)
}

func (s *FSStore) ReadExtractedText(ctx context.Context, caseID, folder string) ([]byte, error) {
	return s.read(caseID, folder, ExtractedTextFile)
}

func (s *FSStore) WriteMetadata(ctx context.Context, caseID, folder string, meta []byte) error {
	return s.write(caseID, folder, MetadataFile, meta)
}

func (s *FSStore) ReadMetadata(ctx context.Context, caseID, folder string) ([]byte, error) {
	return s.read(caseID, folder, MetadataFile)
}

func (s *FSStore) HasOriginal(ctx context.Context, caseID, folder string) (bool, error) {
	_, _, err := s.ReadOriginal(ctx, caseID, folder)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FSStore) HasExtractedText(ctx context.Context, caseID, folder string) (bool, error) {
	return s.has(caseID, folder, ExtractedTextFile)
}

func (s *FSStore) HasMetadata(ctx context.Context, caseID, folder string) (bool, error) {
	return s.has(caseID, folder, MetadataFile)
}

func (s *FSStore) ListFolders(ctx context.Context, caseID string) ([]FolderInfo, error) {
	dir := filepath.Join(s.root, caseID, documentsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var folders []FolderInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		folders = append(folders, FolderInfo{Name: e.Name(), ModTime: info.ModTime()})
	}

	return folders, nil
}

func (s *FSStore) DeleteFolder(ctx context.Context, caseID, folder string) error {
	l := s.folderLock(caseID, folder)
	l.Lock()
	defer l.Unlock()

	return os.RemoveAll(s.folderPath(caseID, folder))
}

// ArchiveFolder tars the folder, compresses it with brotli into the case
// trash, then removes the folder.
func (s *FSStore) ArchiveFolder(ctx context.Context, caseID, folder string) error {
	l := s.folderLock(caseID, folder)
	l.Lock()
	defer l.Unlock()

	src := s.folderPath(caseID, folder)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return ErrNotFound
	}

	trash := filepath.Join(s.root, caseID, trashDir)
	if err := os.MkdirAll(trash, os.ModePerm); err != nil {
		return err
	}

	dst, err := os.Create(filepath.Join(trash, folder+".tar.br"))
	if err != nil {
		return err
	}
	defer dst.Close()

	bw := brotli.NewWriter(dst)
	tw := tar.NewWriter(bw)

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name: filepath.ToSlash(rel),
			Mode: 0644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	logrus.Infof("archived artifact folder %s/%s to trash", caseID, folder)
	return os.RemoveAll(src)
}

// PurgeTrash drops archived folders past the retention window.
func (s *FSStore) PurgeTrash(ctx context.Context, caseID string, olderThan time.Time) (int, error) {
	trash := filepath.Join(s.root, caseID, trashDir)
	entries, err := os.ReadDir(trash)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(trash, e.Name())); err != nil {
			logrus.Warnf("could not purge trash entry %s/%s: %v", caseID, e.Name(), err)
			continue
		}
		removed++
	}

	return removed, nil
}

func (s *FSStore) write(caseID, folder, name string, data []byte) error {
	l := s.folderLock(caseID, folder)
	l.Lock()
	defer l.Unlock()

	dir := s.folderPath(caseID, folder)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	// Write to a temp file then rename, so readers never observe a partial
	// artifact.
	tmp, err := os.CreateTemp(dir, "."+name+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

func (s *FSStore) read(caseID, folder, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.folderPath(caseID, folder), name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FSStore) has(caseID, folder, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.folderPath(caseID, folder), name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}
