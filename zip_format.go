package sealzip

import "time"

// Archive File Layout (single entry, stored, no data descriptor):
// ┌─────────────────────────────────────┐
// │ Local File Header (30 bytes)        │ <- extra_len is always 0
// │ Name                                │
// │ Content                             │ <- crc32 covers this only
// ├─────────────────────────────────────┤
// │ Extra data (variable)               │ <- envelope header + salt + ciphertext
// ├─────────────────────────────────────┤
// │ Central Directory Header (46 bytes) │ <- offset is a 0 placeholder
// │ Name                                │
// ├─────────────────────────────────────┤
// │ End Of Central Directory (22 bytes) │ <- offset points at the central directory
// └─────────────────────────────────────┘

const (
	// LocalFileHeaderMagic identifies a local file header ("PK\x03\x04")
	LocalFileHeaderMagic = 0x04034B50

	// CentralDirectoryMagic identifies a central directory header ("PK\x01\x02")
	CentralDirectoryMagic = 0x02014B50

	// EndOfCentralDirectoryMagic identifies the end record ("PK\x05\x06")
	EndOfCentralDirectoryMagic = 0x06054B50

	// zipVersion is version 1.0, the minimum for stored entries
	zipVersion = 0x0A

	// zipMadeBy is version 6.3, MS-DOS host
	zipMadeBy = 0x3F
)

// LocalFileHeader is the layout of a zip local file header
var LocalFileHeader = MustDefineLayout("local file header", []Field{
	{"magic", U32},
	{"version", U16},
	{"flags", U16},
	{"method", U16},
	{"modified", U32},
	{"crc32", U32},
	{"comp_size", U32},
	{"size", U32},
	{"name_len", U16},
	{"extra_len", U16},
}, Values{
	"magic":    LocalFileHeaderMagic,
	"version":  zipVersion,
	"modified": uint64(DefaultDOSTime),
})

// CentralDirectoryHeader is the layout of a zip central directory header
var CentralDirectoryHeader = MustDefineLayout("central directory header", []Field{
	{"magic", U32},
	{"made_by", U16},
	{"version", U16},
	{"flags", U16},
	{"method", U16},
	{"modified", U32},
	{"crc32", U32},
	{"comp_size", U32},
	{"size", U32},
	{"name_len", U16},
	{"extra_len", U16},
	{"comment_len", U16},
	{"disk_start", U16},
	{"internal_attr", U16},
	{"external_attr", U32},
	{"offset", U32},
}, Values{
	"magic":    CentralDirectoryMagic,
	"made_by":  zipMadeBy,
	"version":  zipVersion,
	"modified": uint64(DefaultDOSTime),
})

// EndOfCentralDirectory is the layout of the zip end record
var EndOfCentralDirectory = MustDefineLayout("end of central directory", []Field{
	{"magic", U32},
	{"disk", U16},
	{"cd_disk", U16},
	{"disk_entries", U16},
	{"total_entries", U16},
	{"size", U32},
	{"offset", U32},
	{"comment_len", U16},
}, Values{
	"magic":         EndOfCentralDirectoryMagic,
	"disk_entries":  1,
	"total_entries": 1,
})

// DefaultDOSTime is 1980-01-01 00:00:00, the earliest DOS timestamp
var DefaultDOSTime = PackDOSTime(time.Time{})

// PackDOSTime packs t into the MS-DOS date/time format used by zip: time in
// the low 16 bits (2 second resolution), date in the high 16 bits. The zero
// time and anything before 1980 map to DefaultDOSTime.
func PackDOSTime(t time.Time) uint32 {
	year, month, day := 1980, 1, 1
	hour, minute, sec := 0, 0, 0
	if !t.IsZero() && t.Year() >= 1980 {
		year, month, day = t.Year(), int(t.Month()), t.Day()
		hour, minute, sec = t.Clock()
	}

	var v uint32
	v |= uint32(sec/2) & 0x1F
	v |= (uint32(minute) & 0x3F) << 5
	v |= (uint32(hour) & 0x1F) << 11
	v |= (uint32(day) & 0x1F) << 16
	v |= (uint32(month) & 0xF) << 21
	v |= (uint32(year-1980) & 0x7F) << 25
	return v
}

// UnpackDOSTime converts a packed DOS timestamp to a time in loc
func UnpackDOSTime(v uint32, loc *time.Location) time.Time {
	return time.Date(
		int(v>>25&0x7F)+1980,
		time.Month(v>>21&0xF),
		int(v>>16&0x1F),
		int(v>>11&0x1F),
		int(v>>5&0x3F),
		int(v&0x1F)*2,
		0, loc,
	)
}
