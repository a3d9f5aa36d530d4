package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/golib/memfile"
	"github.com/ncw/directio"
)

// SegmentFile is one open segment of a FileSet. Reads and writes are
// positional so callers never share a file offset.
type SegmentFile interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Size() (int64, error)
}

// FileSet locates the segment files backing one logical page file.
// Segments are numbered from zero; segment 0 may be named without a suffix.
type FileSet interface {
	OpenSegment(segNo int32) (SegmentFile, error)
}

var (
	_ FileSet = LocalFileSet{}
	_ FileSet = DirectFileSet{}
	_ FileSet = (*MemFileSet)(nil)
)

// LocalFileSet represents a local directory + base file name.
// Segments are stored as: Base, Base.1, Base.2, ...
type LocalFileSet struct {
	Dir  string
	Base string
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (SegmentFile, error) {
	path, err := segmentPath(lfs.Dir, lfs.Base, segNo)
	if err != nil {
		return nil, err
	}
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, err
	}
	return osSegment{f}, nil
}

// DirectFileSet is LocalFileSet with segments opened O_DIRECT, bypassing the
// OS page cache so the buffer pool above is the only cache in play.
// Access must stay aligned to directio.BlockSize; whole-page reads and writes
// at page-multiple offsets satisfy that.
type DirectFileSet struct {
	Dir  string
	Base string
}

func (dfs DirectFileSet) OpenSegment(segNo int32) (SegmentFile, error) {
	path, err := segmentPath(dfs.Dir, dfs.Base, segNo)
	if err != nil {
		return nil, err
	}
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, err
	}
	return directSegment{f}, nil
}

func segmentPath(dir, base string, segNo int32) (string, error) {
	name := base
	if segNo > 0 {
		name = fmt.Sprintf("%s.%d", base, segNo)
	}
	if err := os.MkdirAll(dir, FileMode0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

type osSegment struct {
	*os.File
}

func (s osSegment) Size() (int64, error) {
	info, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

type directSegment struct {
	f *os.File
}

func (s directSegment) ReadAt(p []byte, off int64) (int, error) {
	if len(p)%directio.BlockSize != 0 || off%int64(directio.BlockSize) != 0 {
		return 0, ErrUnalignedIO
	}
	// O_DIRECT needs the buffer itself aligned; read into a scratch block.
	block := directio.AlignedBlock(len(p))
	n, err := s.f.ReadAt(block, off)
	copy(p, block[:n])
	return n, err
}

func (s directSegment) WriteAt(p []byte, off int64) (int, error) {
	if len(p)%directio.BlockSize != 0 || off%int64(directio.BlockSize) != 0 {
		return 0, ErrUnalignedIO
	}
	block := directio.AlignedBlock(len(p))
	copy(block, p)
	return s.f.WriteAt(block, off)
}

func (s directSegment) Close() error { return s.f.Close() }

func (s directSegment) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// MemFileSet keeps all segments in memory. Used for tests and for the
// "memory" storage mode where nothing should touch disk.
type MemFileSet struct {
	segs map[int32]*memfile.File
}

func NewMemFileSet() *MemFileSet {
	return &MemFileSet{segs: make(map[int32]*memfile.File)}
}

func (mfs *MemFileSet) OpenSegment(segNo int32) (SegmentFile, error) {
	f, ok := mfs.segs[segNo]
	if !ok {
		f = memfile.New(nil)
		mfs.segs[segNo] = f
	}
	return memSegment{f}, nil
}

type memSegment struct {
	*memfile.File
}

func (s memSegment) Close() error { return nil }

func (s memSegment) Size() (int64, error) {
	return int64(len(s.Bytes())), nil
}
