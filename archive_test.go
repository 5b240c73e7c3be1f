package sealzip

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"testing"
	"time"
)

func TestWriteEntryLayout(t *testing.T) {
	name := []byte("!encrypted.txt")
	content := []byte("This file is encrypted.")
	extra := [][]byte{[]byte("header"), []byte("salt-bytes"), []byte("ciphertext")}

	var buf bytes.Buffer
	if err := WriteEntry(&buf, Entry{Name: name, Content: content, Extra: extra}); err != nil {
		t.Fatalf("WriteEntry() failed: %v", err)
	}
	data := buf.Bytes()

	extraLen := 0
	for _, b := range extra {
		extraLen += len(b)
	}
	cdOffset := 30 + len(name) + len(content) + extraLen
	wantLen := cdOffset + 46 + len(name) + 22
	if len(data) != wantLen {
		t.Fatalf("archive length = %d, want %d", len(data), wantLen)
	}

	lfh, err := LocalFileHeader.Load(data, 0)
	if err != nil {
		t.Fatalf("local header: %v", err)
	}
	checks := []struct {
		rec   Record
		field string
		want  uint64
	}{
		{lfh, "version", 0x0A},
		{lfh, "method", 0},
		{lfh, "crc32", uint64(crc32.ChecksumIEEE(content))},
		{lfh, "comp_size", uint64(len(content))},
		{lfh, "size", uint64(len(content))},
		{lfh, "name_len", uint64(len(name))},
		{lfh, "extra_len", 0},
		{lfh, "modified", uint64(DefaultDOSTime)},
	}

	cd, err := CentralDirectoryHeader.Load(data, cdOffset)
	if err != nil {
		t.Fatalf("central directory: %v", err)
	}
	checks = append(checks, []struct {
		rec   Record
		field string
		want  uint64
	}{
		{cd, "made_by", 0x3F},
		{cd, "version", 0x0A},
		{cd, "crc32", uint64(crc32.ChecksumIEEE(content))},
		{cd, "size", uint64(len(content))},
		{cd, "name_len", uint64(len(name))},
		{cd, "offset", 0},
	}...)

	end, err := EndOfCentralDirectory.Load(data, len(data)-22)
	if err != nil {
		t.Fatalf("end record: %v", err)
	}
	checks = append(checks, []struct {
		rec   Record
		field string
		want  uint64
	}{
		{end, "disk_entries", 1},
		{end, "total_entries", 1},
		{end, "size", uint64(46 + len(name))},
		{end, "offset", uint64(cdOffset)},
	}...)

	for _, c := range checks {
		if got := c.rec.Get(c.field); got != c.want {
			t.Errorf("%s.%s = %#x, want %#x", c.rec.Layout().Name(), c.field, got, c.want)
		}
	}

	if !bytes.Equal(data[30:30+len(name)], name) {
		t.Error("name does not follow the local header")
	}
	if !bytes.Equal(data[cdOffset+46:cdOffset+46+len(name)], name) {
		t.Error("name does not follow the central directory header")
	}
}

func TestReadEntryRecoversExtra(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		extra   [][]byte
	}{
		{"single block", []byte("notice"), [][]byte{[]byte("payload")}},
		{"several blocks", []byte("notice"), [][]byte{{1, 2, 3}, {4}, {5, 6}}},
		{"empty content", nil, [][]byte{bytes.Repeat([]byte{0xAB}, 5000)}},
		{"empty blocks mixed in", []byte("x"), [][]byte{nil, []byte("a"), {}, []byte("b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteEntry(&buf, Entry{Name: []byte("f.txt"), Content: tt.content, Extra: tt.extra}); err != nil {
				t.Fatalf("WriteEntry() failed: %v", err)
			}

			got, err := ReadEntry(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("ReadEntry() failed: %v", err)
			}
			if want := bytes.Join(tt.extra, nil); !bytes.Equal(got, want) {
				t.Errorf("ReadEntry() = %q, want %q", got, want)
			}
		})
	}
}

func TestReadEntryNoExtraData(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEntry(&buf, Entry{Name: []byte("f"), Content: []byte("content")}); err != nil {
		t.Fatal(err)
	}

	_, err := ReadEntry(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrNoExtraData) {
		t.Errorf("ReadEntry() error = %v, want ErrNoExtraData", err)
	}
}

func TestReadEntryRejectsCorruptTrailer(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEntry(&buf, Entry{Name: []byte("f"), Extra: [][]byte{[]byte("x")}}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	t.Run("end magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-22] ^= 0xFF
		_, err := ReadEntry(bytes.NewReader(bad))
		if !errors.Is(err, ErrInvalidMagic) {
			t.Errorf("error = %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("central directory magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		cdOffset := binary.LittleEndian.Uint32(bad[len(bad)-6:])
		bad[cdOffset] ^= 0xFF
		_, err := ReadEntry(bytes.NewReader(bad))
		if !errors.Is(err, ErrInvalidMagic) {
			t.Errorf("error = %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("shorter than end record", func(t *testing.T) {
		_, err := ReadEntry(bytes.NewReader(data[:10]))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("error = %v, want ErrTruncated", err)
		}
	})

	t.Run("central directory past end", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint32(bad[len(bad)-6:], uint32(len(bad)))
		if _, err := ReadEntry(bytes.NewReader(bad)); err == nil {
			t.Error("expected error for central directory beyond the file")
		}
	})
}

func TestArchiveWriterStreamsExtra(t *testing.T) {
	var buf bytes.Buffer
	aw, err := NewArchiveWriter(&buf, []byte("n"), []byte("c"), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"ab", "", "cde"} {
		if _, err := io.WriteString(aw, p); err != nil {
			t.Fatal(err)
		}
	}
	if aw.ExtraLen() != 5 {
		t.Errorf("ExtraLen() = %d, want 5", aw.ExtraLen())
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := aw.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := aw.Write([]byte("x")); err == nil {
		t.Error("Write() after Close() should fail")
	}

	var direct bytes.Buffer
	WriteEntry(&direct, Entry{Name: []byte("n"), Content: []byte("c"), Extra: [][]byte{[]byte("abcde")}})
	if !bytes.Equal(buf.Bytes(), direct.Bytes()) {
		t.Error("ArchiveWriter output differs from WriteEntry")
	}
}

func TestArchiveOpensWithArchiveZip(t *testing.T) {
	content := []byte("This file is encrypted.")
	modified := time.Date(2024, 5, 17, 13, 45, 30, 0, time.UTC)

	var buf bytes.Buffer
	err := WriteEntry(&buf, Entry{
		Name:     []byte("!encrypted.txt"),
		Content:  content,
		Modified: modified,
		Extra:    [][]byte{bytes.Repeat([]byte{7}, 100)},
	})
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() failed: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(zr.File))
	}
	f := zr.File[0]
	if f.Name != "!encrypted.txt" {
		t.Errorf("entry name = %q", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("entry content = %q, want %q", got, content)
	}
	if !f.Modified.Equal(modified) {
		t.Errorf("entry modified = %v, want %v", f.Modified, modified)
	}
}

func TestInspect(t *testing.T) {
	modified := time.Date(2001, 2, 3, 4, 5, 6, 0, time.Local)
	var buf bytes.Buffer
	WriteEntry(&buf, Entry{
		Name:     []byte("name.txt"),
		Content:  []byte("0123456789"),
		Modified: modified,
		Extra:    [][]byte{make([]byte, 40)},
	})

	info, err := Inspect(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if string(info.Name) != "name.txt" || info.Size != 10 {
		t.Errorf("Inspect() = %+v", info)
	}
	if info.ExtraOffset != 30+8+10 || info.ExtraSize != 40 {
		t.Errorf("extra span = [%d, +%d), want [48, +40)", info.ExtraOffset, info.ExtraSize)
	}
	if info.CRC32 != crc32.ChecksumIEEE([]byte("0123456789")) {
		t.Errorf("CRC32 = %08x", info.CRC32)
	}
	if !info.Modified.Equal(modified) {
		t.Errorf("Modified = %v, want %v", info.Modified, modified)
	}
}

func TestDOSTime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"zero", time.Time{}, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"before 1980", time.Date(1970, 6, 1, 12, 0, 0, 0, time.UTC), time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"even seconds", time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC), time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC)},
		{"odd seconds round down", time.Date(2010, 7, 4, 8, 30, 11, 0, time.UTC), time.Date(2010, 7, 4, 8, 30, 10, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnpackDOSTime(PackDOSTime(tt.in), time.UTC)
			if !got.Equal(tt.want) {
				t.Errorf("round trip = %v, want %v", got, tt.want)
			}
		})
	}

	if DefaultDOSTime != 0x00210000 {
		t.Errorf("DefaultDOSTime = %#x, want 0x00210000", DefaultDOSTime)
	}
}

// TestReadEntrySumsEntrySpans builds a two-entry archive by hand and checks
// the extra span is found after the second entry whatever its central
// record claims as offset
func TestReadEntrySumsEntrySpans(t *testing.T) {
	entries := []struct{ name, content string }{{"a", "xx"}, {"b", "yyy"}}
	payload := []byte("PAYLOAD")

	for _, secondOffset := range []uint64{0, 33, 999} {
		var buf bytes.Buffer
		for _, e := range entries {
			buf.Write(LocalFileHeader.Pack(Values{
				"comp_size": uint64(len(e.content)),
				"size":      uint64(len(e.content)),
				"name_len":  uint64(len(e.name)),
			}))
			buf.WriteString(e.name)
			buf.WriteString(e.content)
		}
		buf.Write(payload)

		cdOffset := buf.Len()
		for i, e := range entries {
			offset := uint64(0)
			if i == 1 {
				offset = secondOffset
			}
			buf.Write(CentralDirectoryHeader.Pack(Values{
				"comp_size": uint64(len(e.content)),
				"size":      uint64(len(e.content)),
				"name_len":  uint64(len(e.name)),
				"offset":    offset,
			}))
			buf.WriteString(e.name)
		}
		buf.Write(EndOfCentralDirectory.Pack(Values{
			"disk_entries":  2,
			"total_entries": 2,
			"size":          uint64(buf.Len() - cdOffset),
			"offset":        uint64(cdOffset),
		}))

		got, err := ReadEntry(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("second offset %d: ReadEntry() failed: %v", secondOffset, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("second offset %d: ReadEntry() = %q, want %q", secondOffset, got, payload)
		}
	}
}
