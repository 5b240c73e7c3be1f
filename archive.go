package sealzip

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// Entry is the single logical file of an archive. Extra blocks are written
// after Content, in order, and are what ReadEntry recovers.
type Entry struct {
	Name     []byte
	Content  []byte
	Modified time.Time // zero means DefaultDOSTime
	Extra    [][]byte
}

// ArchiveWriter writes a single-entry archive. The local header, name and
// content are written by NewArchiveWriter; Write appends extra data; Close
// writes the central directory and end record. Closing the writer does not
// close the underlying handle.
type ArchiveWriter struct {
	w        io.Writer
	name     []byte
	crc      uint32
	size     uint32
	modified uint32
	lfhLen   int64 // local header + name + content
	extraLen int64
	closed   bool
}

// NewArchiveWriter writes the local file header, name and content to w
func NewArchiveWriter(w io.Writer, name, content []byte, modified time.Time) (*ArchiveWriter, error) {
	aw := &ArchiveWriter{
		w:        w,
		name:     name,
		crc:      crc32.ChecksumIEEE(content),
		size:     uint32(len(content)),
		modified: PackDOSTime(modified),
	}

	header := LocalFileHeader.Pack(Values{
		"modified":  uint64(aw.modified),
		"crc32":     uint64(aw.crc),
		"comp_size": uint64(aw.size),
		"size":      uint64(aw.size),
		"name_len":  uint64(len(name)),
	})

	for _, b := range [][]byte{header, name, content} {
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
	}
	aw.lfhLen = int64(len(header) + len(name) + len(content))

	return aw, nil
}

// Write appends p to the extra data region
func (aw *ArchiveWriter) Write(p []byte) (int, error) {
	if aw.closed {
		return 0, errors.New("sealzip: write to closed archive writer")
	}
	n, err := aw.w.Write(p)
	aw.extraLen += int64(n)
	return n, err
}

// ExtraLen returns the number of extra bytes written so far
func (aw *ArchiveWriter) ExtraLen() int64 { return aw.extraLen }

// Close writes the central directory header, the name again and the end
// record. It is safe to call more than once.
func (aw *ArchiveWriter) Close() error {
	if aw.closed {
		return nil
	}
	aw.closed = true

	central := CentralDirectoryHeader.Pack(Values{
		"modified":  uint64(aw.modified),
		"crc32":     uint64(aw.crc),
		"comp_size": uint64(aw.size),
		"size":      uint64(aw.size),
		"name_len":  uint64(len(aw.name)),
		"offset":    0,
	})
	end := EndOfCentralDirectory.Pack(Values{
		"size":   uint64(CentralDirectoryHeader.Size() + len(aw.name)),
		"offset": uint64(aw.lfhLen + aw.extraLen),
	})

	for _, b := range [][]byte{central, aw.name, end} {
		if _, err := aw.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteEntry writes e as a complete single-entry archive
func WriteEntry(w io.Writer, e Entry) error {
	aw, err := NewArchiveWriter(w, e.Name, e.Content, e.Modified)
	if err != nil {
		return err
	}
	for _, block := range e.Extra {
		if _, err := aw.Write(block); err != nil {
			return err
		}
	}
	return aw.Close()
}

// EntryInfo describes the entry of an archive as recorded in its central
// directory, plus the location of the extra data span.
type EntryInfo struct {
	Name        []byte
	Size        uint32
	CRC32       uint32
	Modified    time.Time
	ExtraOffset int64
	ExtraSize   int64
}

// Inspect reads the trailer and central directory of the archive in r.
// ExtraSize is not checked; it may be zero or negative for archives that
// carry no extra data.
func Inspect(r io.ReadSeeker) (*EntryInfo, error) {
	end, endPos, err := readEnd(r)
	if err != nil {
		return nil, err
	}

	cdOffset := int64(end.Get("offset"))
	cdSize := int(end.Get("size"))
	if cdOffset+int64(cdSize) > endPos {
		return nil, NewFormatError(EndOfCentralDirectory.Name(), endPos, ErrTruncated,
			fmt.Sprintf("central directory [%d, +%d) runs past the end record", cdOffset, cdSize))
	}

	if _, err := r.Seek(cdOffset, io.SeekStart); err != nil {
		return nil, err
	}
	centrals := make([]byte, cdSize)
	if _, err := io.ReadFull(r, centrals); err != nil {
		return nil, err
	}

	info := &EntryInfo{}
	var payloadStart int64
	for i := 0; i < len(centrals); {
		central, err := CentralDirectoryHeader.Load(centrals, i)
		if err != nil {
			if fe, ok := err.(*FormatError); ok {
				fe.Offset = cdOffset + int64(i)
			}
			return nil, err
		}

		nameLen := int(central.Get("name_len"))
		extraLen := int(central.Get("extra_len"))
		commentLen := int(central.Get("comment_len"))

		// Recorded offsets are placeholders. Only the first one anchors the
		// walk; each entry adds its span.
		if i == 0 {
			payloadStart = int64(central.Get("offset"))
		}
		payloadStart += int64(LocalFileHeader.Size()) + int64(nameLen) +
			int64(extraLen) + int64(central.Get("comp_size"))

		nameStart := i + CentralDirectoryHeader.Size()
		nameEnd := min(nameStart+nameLen, len(centrals))
		info.Name = append([]byte(nil), centrals[nameStart:nameEnd]...)
		info.Size = uint32(central.Get("size"))
		info.CRC32 = uint32(central.Get("crc32"))
		info.Modified = UnpackDOSTime(uint32(central.Get("modified")), time.Local)

		i = nameStart + nameLen + extraLen + commentLen
	}

	info.ExtraOffset = payloadStart
	info.ExtraSize = cdOffset - payloadStart
	return info, nil
}

// LocateExtra returns the offset and size of the extra data span
func LocateExtra(r io.ReadSeeker) (offset, size int64, err error) {
	info, err := Inspect(r)
	if err != nil {
		return 0, 0, err
	}
	if info.ExtraSize <= 0 {
		return 0, 0, ErrNoExtraData
	}
	return info.ExtraOffset, info.ExtraSize, nil
}

// ReadEntry returns exactly the extra data span of the archive in r
func ReadEntry(r io.ReadSeeker) ([]byte, error) {
	offset, size, err := LocateExtra(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// readEnd seeks to the end record and loads it. pos is the record offset.
func readEnd(r io.ReadSeeker) (end Record, pos int64, err error) {
	pos, err = r.Seek(-int64(EndOfCentralDirectory.Size()), io.SeekEnd)
	if err != nil {
		// Seeking before the start of the file is the usual cause
		if size, serr := r.Seek(0, io.SeekEnd); serr == nil && size < int64(EndOfCentralDirectory.Size()) {
			return Record{}, 0, NewFormatError(EndOfCentralDirectory.Name(), -1, ErrTruncated,
				fmt.Sprintf("archive is %d bytes, shorter than the end record", size))
		}
		return Record{}, 0, err
	}

	buf := make([]byte, EndOfCentralDirectory.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, 0, err
	}

	end, err = EndOfCentralDirectory.Load(buf, 0)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Offset = pos
		}
		return Record{}, 0, err
	}
	return end, pos, nil
}
