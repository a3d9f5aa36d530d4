package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/hmngo/pagebuf/internal/alias/util"
)

// StorageManager maps a logical PageID -> (segment, offset) and moves whole
// pages between a FileSet and memory. It is the page cache's only route to
// persistent storage.
type StorageManager struct{}

func NewStorageManager() *StorageManager {
	return &StorageManager{}
}

func (sm *StorageManager) pagesPerSegment() int {
	// total 1 GiB / 8 KiB = 131072 pages per segment
	return SegmentSize / PageSize
}

func (sm *StorageManager) locate(id PageID) (segNo int32, offset int64) {
	pps := PageID(sm.pagesPerSegment())
	segNo = int32(id / pps)
	offset = int64(id%pps) * PageSize
	return segNo, offset
}

// readRaw reads exactly one page (PageSize bytes) into dst.
// If the underlying segment is smaller than offset+PageSize, the remainder is
// zero-filled. This allows "sparse" pages that are lazily initialized by
// higher layers.
func (sm *StorageManager) readRaw(fs FileSet, id PageID, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("dst must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(id)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseQuiet(f)

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return err
	}
	// Zero-fill the rest of the page if we hit EOF early or a short read.
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

func (sm *StorageManager) writeRaw(fs FileSet, id PageID, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("src must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(id)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseQuiet(f)

	n, err := f.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// ReadPage reads a page into memory and returns a Page wrapper.
// If the on-disk bytes are all zero, the page is treated as uninitialized
// and is initialized with the given id.
func (sm *StorageManager) ReadPage(fs FileSet, id PageID) (*Page, error) {
	buf := make([]byte, PageSize)
	if err := sm.readRaw(fs, id, buf); err != nil {
		return nil, err
	}
	p := &Page{Buf: buf}
	if p.IsUninitialized() {
		p.init(id)
	}
	return p, nil
}

// WritePage writes the in-memory Page back to its computed disk location.
func (sm *StorageManager) WritePage(fs FileSet, p *Page) error {
	if p == nil || len(p.Buf) != PageSize {
		return fmt.Errorf("page buffer must be %d bytes", PageSize)
	}
	return sm.writeRaw(fs, p.ID(), p.Buf)
}

// BulkRead reads count consecutive pages starting at startID and hands each
// one to fn. Reading stops at the first error, from the read or from fn.
func (sm *StorageManager) BulkRead(fs FileSet, startID PageID, count int, fn func(*Page) error) error {
	for i := 0; i < count; i++ {
		p, err := sm.ReadPage(fs, startID+PageID(i))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// CountPages computes total pages for a given FileSet by scanning all segments.
func (sm *StorageManager) CountPages(fs FileSet) (uint32, error) {
	var total uint32

	// We assume segments are named: Base, Base.1, Base.2, ...
	for segNo := int32(0); ; segNo++ {
		f, err := fs.OpenSegment(segNo)
		if err != nil {
			// Stop when the segment file does not exist
			if os.IsNotExist(err) {
				break
			}
			return 0, err
		}

		size, sizeErr := f.Size()
		_ = f.Close()
		if sizeErr != nil {
			return 0, sizeErr
		}

		if size <= 0 {
			// Empty segment marks the end of the set.
			break
		}

		total += uint32(size / int64(PageSize))
	}

	return total, nil
}
