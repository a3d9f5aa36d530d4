package storage

import (
	"encoding/binary"
	"errors"
)

// Header offsets
const (
	offFlags   = 0
	offPageID  = 2
	offLower   = 6
	offUpper   = 8
	offSpecial = 10
)

// Slot flags
const (
	SlotFlagNormal  uint16 = 0
	SlotFlagDeleted uint16 = 1 << 0
	SlotFlagMoved   uint16 = 1 << 1
)

var (
	ErrRecordTooLarge = errors.New("page: record too large for inline")
	ErrNoSpace        = errors.New("page: not enough free space")
	ErrBadRecord      = errors.New("page: invalid record id")
	ErrCorruption     = errors.New("page: corrupt slot or record bounds")
	ErrWrongSize      = errors.New("page: buffer size != PageSize")
)

type Slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// +------------------+ 0
// | PageHeaderData   |
// | LinePointers[]   | <-- pd_lower
// +------------------+
// |                  |
// |   Free space     |
// |                  |
// +------------------+ <-- pd_upper
// |  Record Data     |
// |  (grows down)    |
// +------------------+ <-- pd_special (unused)
// |  Special Space   |
// +------------------+ Block/Page Size (8192)
type Page struct {
	Buf []byte // fixed-size 8KB
}

func NewPage(buf []byte, id PageID) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	p.init(id)
	return p, nil
}

// ---- low-level header getters/setters ----
func (p *Page) flags() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offFlags:])
}

func (p *Page) setFlags(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offFlags:], v)
}

func (p *Page) ID() PageID {
	return PageID(binary.LittleEndian.Uint32(p.Buf[offPageID:]))
}

func (p *Page) setID(v PageID) {
	binary.LittleEndian.PutUint32(p.Buf[offPageID:], uint32(v))
}

func (p *Page) lower() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offLower:])
}

func (p *Page) setLower(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offLower:], v)
}

func (p *Page) upper() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offUpper:])
}

func (p *Page) setUpper(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offUpper:], v)
}

func (p *Page) special() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offSpecial:])
}

func (p *Page) setSpecial(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offSpecial:], v)
}

func (p *Page) init(id PageID) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	p.setFlags(0)
	p.setID(id)
	p.setLower(HeaderSize)
	p.setUpper(PageSize)
	p.setSpecial(PageSize) // unused for now
}

// ---- public helpers ----
func (p *Page) FreeSpace() int {
	return int(p.upper() - p.lower())
}

func (p *Page) NumRecords() int {
	return int(p.lower()-HeaderSize) / SlotSize
}

func (p *Page) IsUninitialized() bool {
	return p.lower() == 0 && p.upper() == 0
}

// ---- slots ----
func (p *Page) slotOff(idx int) int {
	return HeaderSize + idx*SlotSize
}

func (p *Page) getSlot(i int) (Slot, error) {
	if i < 0 || i >= p.NumRecords() {
		return Slot{}, ErrBadRecord
	}
	o := p.slotOff(i)
	// slot must live inside [HeaderSize, lower)
	if o+SlotSize > int(p.lower()) {
		return Slot{}, ErrCorruption
	}
	_ = p.Buf[o+5]
	return Slot{
		Offset: binary.LittleEndian.Uint16(p.Buf[o+0:]),
		Length: binary.LittleEndian.Uint16(p.Buf[o+2:]),
		Flags:  binary.LittleEndian.Uint16(p.Buf[o+4:]),
	}, nil
}

func (p *Page) putSlot(idx int, s Slot) error {
	if idx < 0 || idx > p.NumRecords() {
		// allow writing next slot only via append
		return ErrBadRecord
	}
	off := p.slotOff(idx)

	// Appending a new slot (idx == NumRecords) must leave room before upper.
	if idx == p.NumRecords() && off+SlotSize > int(p.upper()) {
		return ErrNoSpace
	}
	if off+SlotSize > len(p.Buf) {
		return ErrCorruption
	}

	binary.LittleEndian.PutUint16(p.Buf[off+0:], s.Offset)
	binary.LittleEndian.PutUint16(p.Buf[off+2:], s.Length)
	binary.LittleEndian.PutUint16(p.Buf[off+4:], s.Flags)
	return nil
}

func (p *Page) appendSlot(off, length, flags uint16) (int, error) {
	i := p.NumRecords()
	if err := p.putSlot(i, Slot{Offset: off, Length: length, Flags: flags}); err != nil {
		return -1, err
	}
	p.setLower(p.lower() + SlotSize)
	return i, nil
}

// markRedirect turns oldIdx into a pointer at newIdx within the same page:
// Flags=Moved, Offset=target slot, Length=0.
func (p *Page) markRedirect(oldIdx, newIdx int) error {
	return p.putSlot(oldIdx, Slot{
		Offset: uint16(newIdx),
		Length: 0,
		Flags:  SlotFlagMoved,
	})
}

func (p *Page) insertRecord(rec []byte) (int, error) {
	maxInline := PageSize - HeaderSize - SlotSize
	if len(rec) > maxInline {
		return -1, ErrRecordTooLarge
	}
	need := len(rec) + SlotSize
	if p.FreeSpace() < need {
		return -1, ErrNoSpace
	}
	u := int(p.upper()) - len(rec)
	copy(p.Buf[u:], rec)
	p.setUpper(uint16(u))
	return p.appendSlot(uint16(u), uint16(len(rec)), SlotFlagNormal)
}

// PutRecord stores rec under recID. recID == NumRecords() appends a new
// record. An existing record shrinks in place when the new payload fits,
// otherwise it is rewritten elsewhere and the old slot redirects to it.
func (p *Page) PutRecord(rec []byte, recID int) error {
	if recID == p.NumRecords() {
		got, err := p.insertRecord(rec)
		if err != nil {
			return err
		}
		if got != recID {
			return ErrCorruption
		}
		return nil
	}

	s, err := p.getSlot(recID)
	if err != nil {
		return err
	}
	if s.Flags != SlotFlagNormal || s.Offset == 0 || s.Length == 0 {
		return ErrBadRecord
	}

	// In-place shrink or equal
	if len(rec) <= int(s.Length) {
		copy(p.Buf[int(s.Offset):], rec)
		return p.putSlot(recID, Slot{
			Offset: s.Offset,
			Length: uint16(len(rec)),
			Flags:  SlotFlagNormal,
		})
	}

	// Need new space -> insert, then redirect old slot to the new one.
	newID, err := p.insertRecord(rec)
	if err != nil {
		return err
	}
	return p.markRedirect(recID, newID)
}

// ReadRecord returns the payload stored under recID, following same-page
// redirects left behind by grow-in-place updates.
func (p *Page) ReadRecord(recID int) ([]byte, error) {
	visited := 0
	for {
		s, err := p.getSlot(recID)
		if err != nil {
			return nil, err
		}

		switch s.Flags {
		case SlotFlagNormal:
			if s.Offset == 0 || s.Length == 0 {
				return nil, ErrCorruption
			}
			start, end := int(s.Offset), int(s.Offset)+int(s.Length)
			if start < 0 || start < int(p.upper()) || end > PageSize || start >= end {
				return nil, ErrCorruption
			}
			return p.Buf[start:end], nil

		case SlotFlagMoved:
			if s.Length != 0 || s.Offset == 0 {
				return nil, ErrCorruption
			}
			recID = int(s.Offset)
			visited++
			// guard against redirect cycles
			if visited > p.NumRecords() {
				return nil, ErrCorruption
			}

		case SlotFlagDeleted:
			return nil, ErrBadRecord

		default:
			return nil, ErrCorruption
		}
	}
}

// DeleteRecord marks the record's slot deleted. The payload bytes stay until
// the page is compacted or rewritten.
func (p *Page) DeleteRecord(recID int) error {
	if _, err := p.getSlot(recID); err != nil {
		return err
	}
	return p.putSlot(recID, Slot{Offset: 0, Length: 0, Flags: SlotFlagDeleted})
}
