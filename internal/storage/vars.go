package storage

import (
	"errors"
	"fmt"
)

const (
	OneB  = 1 << 0  // 1
	OneKB = 1 << 10 // 1,024
	OneMB = 1 << 20 // 1,048,576
	OneGB = 1 << 30 // 1,073,741,824

	SegmentSize       = 1 << 30                // 1,073,741,824 (1 GiB)
	PageSize          = 1 << 13                // 8,192 (8 KiB)
	MaxPagePerSegment = SegmentSize / PageSize // 131,072 pages/segment
	HeaderSize        = 12                     // 12
	SlotSize          = 6                      // 6 (3 * uint16: offset, length, flags)
)

const (
	FileMode0644 = 0o644
	FileMode0664 = 0o664
	FileMode0755 = 0o755
)

// PageID identifies one page across storage and any cache layered on top.
type PageID uint32

type StorageMode int

const (
	Local  StorageMode = iota + 1 // plain files
	Direct                        // O_DIRECT files
	Memory                        // in-process segments, nothing touches disk
)

func (s StorageMode) String() string {
	switch s {
	case Local:
		return "local"
	case Direct:
		return "direct"
	case Memory:
		return "memory"
	default:
		return "unknown"
	}
}

func GetStorageMode(s string) (StorageMode, error) {
	switch s {
	case "local":
		return Local, nil
	case "direct":
		return Direct, nil
	case "memory":
		return Memory, nil
	default:
		return 0, fmt.Errorf("invalid storage mode: %s", s)
	}
}

var (
	ErrWriteExceedPageSize = errors.New("storage: write would exceed page size")
	ErrReadExceedPageSize  = errors.New("storage: read would exceed page size")
	ErrUnalignedIO         = errors.New("storage: direct I/O requires block-aligned access")
)
