package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var indexMagic = [4]byte{'P', 'R', 'V', 'X'}

const indexVersion uint32 = 1

// FileStorage keeps one vector file and one metadata file per user:
//
//	<dir>/<user>.index      magic, version, dim, count, little-endian float32s
//	<dir>/<user>.meta.json  {"ids": [...], "payloads": [...]}
//
// Each file is replaced atomically. A crash between the two renames leaves
// them at different lengths; Load keeps the shorter prefix.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

type fileMeta struct {
	IDs      []int     `json:"ids"`
	Payloads []Payload `json:"payloads"`
}

func (s *FileStorage) indexPath(userID uuid.UUID) string {
	return filepath.Join(s.dir, userID.String()+".index")
}

func (s *FileStorage) metaPath(userID uuid.UUID) string {
	return filepath.Join(s.dir, userID.String()+".meta.json")
}

func (s *FileStorage) Load(_ context.Context, userID uuid.UUID) (*Snapshot, error) {
	dim, vectors, err := readVectors(s.indexPath(userID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading index for %s: %w", userID, err)
	}

	var meta fileMeta
	data, err := os.ReadFile(s.metaPath(userID))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading metadata for %s: %w", userID, err)
	default:
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", userID, err)
		}
	}

	n := min(len(vectors), len(meta.Payloads))
	if len(vectors) != len(meta.Payloads) {
		slog.Warn("memory: index and metadata lengths differ, truncating",
			"user_id", userID, "vectors", len(vectors), "payloads", len(meta.Payloads), "kept", n)
	}
	if n == 0 {
		dim = 0
	}
	return &Snapshot{Dim: dim, Vectors: vectors[:n], Payloads: meta.Payloads[:n]}, nil
}

func (s *FileStorage) Save(_ context.Context, userID uuid.UUID, snap *Snapshot, _ int) error {
	var buf bytes.Buffer
	if err := writeVectors(&buf, snap.Dim, snap.Vectors); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(userID), buf.Bytes()); err != nil {
		return fmt.Errorf("writing index for %s: %w", userID, err)
	}

	meta := fileMeta{IDs: make([]int, len(snap.Payloads)), Payloads: snap.Payloads}
	for i := range meta.IDs {
		meta.IDs[i] = i
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := writeFileAtomic(s.metaPath(userID), data); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", userID, err)
	}
	return nil
}

func writeVectors(w io.Writer, dim int, vectors [][]float32) error {
	header := []uint32{indexVersion, uint32(dim), uint32(len(vectors))}
	if _, err := w.Write(indexMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != indexMagic {
		return 0, nil, fmt.Errorf("not an index file: %q", magic[:])
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("reading header: %w", err)
	}
	if header[0] != indexVersion {
		return 0, nil, fmt.Errorf("unsupported index version %d", header[0])
	}
	dim, count := int(header[1]), int(header[2])

	vectors := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			// Partial tail from an interrupted write; keep what is complete.
			slog.Warn("memory: truncated index file", "path", path, "read", i, "expected", count)
			break
		}
		vectors = append(vectors, v)
	}
	return dim, vectors, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
