package cyacd

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moffa90/go-cyacd2/protocol"
)

// Constants for CYACD2 file format parsing.
const (
	// FileVersion is the only supported value of the header version byte
	FileVersion = 1

	// HeaderSize is the decoded size of the header line in bytes
	HeaderSize = 12

	// RowAddressSize is the size of the address prefix of a data row
	RowAddressSize = 4

	// MaxRowDataSize is the largest payload a row may carry
	MaxRowDataSize = protocol.MaxDataSize

	// DefaultRowCapacity is the default initial capacity for the rows slice
	DefaultRowCapacity = 256
)

// Line prefixes.
const (
	DataRowPrefix   = ":"
	MetaRowPrefix   = "@"
	AppInfoPrefix   = "@APPINFO:0x"
	AppInfoSep      = ",0x"
	EIVPrefix       = "@EIV:"
	CommentPrefix   = "#"
	appInfoSepStart = ","
)

// CheckVersion reads the format version from the first two characters of
// the header line.
func CheckVersion(line string) (byte, error) {
	if len(line) < 2 {
		return 0, protocol.NewError(protocol.CodeFile, "check version", "header line too short")
	}
	version := FromHex(line[0])<<4 | FromHex(line[1])
	if version != FileVersion {
		return version, protocol.NewError(protocol.CodeData, "check version", "unsupported file version %d", version)
	}
	return version, nil
}

// ParseHeader parses the .cyacd2 header line.
//
// Header format (24 hex characters, multi-byte fields little-endian):
//
//	[Version(1)][SiliconID(4)][SiliconRev(1)][ChecksumType(1)][AppID(1)][ProductID(4)]
//
// Example: "01AA02961E00000102030405" = SiliconID: 0x1E9602AA, Rev: 0x00,
// Checksum: 0x00, AppID: 0x01, ProductID: 0x05040302
func ParseHeader(line string) (*Header, error) {
	data, err := FromASCIIHex(line)
	if err != nil {
		return nil, err
	}
	if len(data) != HeaderSize {
		return nil, protocol.NewError(protocol.CodeLength, "parse header", "got %d bytes, expected %d", len(data), HeaderSize)
	}

	return &Header{
		Version:      data[0],
		SiliconID:    binary.LittleEndian.Uint32(data[1:5]),
		SiliconRev:   data[5],
		ChecksumType: data[6],
		AppID:        data[7],
		ProductID:    uint64(binary.LittleEndian.Uint32(data[8:12])),
	}, nil
}

// ParseRow parses a data row.
//
// Row format:
//
//	:[Address(4)][Data(N)]
//
// All values are hex-encoded, the address is little-endian.
//
// Example: ":0001000001020304"
//
//	Address: 0x00000100
//	Data: [0x01, 0x02, 0x03, 0x04]
//	Checksum: 0x0A
func ParseRow(line string) (*Row, error) {
	if len(line) <= RowAddressSize {
		return nil, protocol.NewError(protocol.CodeLength, "parse row", "row too short: %d characters", len(line))
	}
	if !strings.HasPrefix(line, DataRowPrefix) {
		return nil, protocol.NewError(protocol.CodeCmd, "parse row", "row must start with %q", DataRowPrefix)
	}

	data, err := FromASCIIHex(line[1:])
	if err != nil {
		return nil, err
	}
	if len(data) <= RowAddressSize {
		return nil, protocol.NewError(protocol.CodeData, "parse row", "row has no data")
	}

	payload := data[RowAddressSize:]
	if len(payload) > MaxRowDataSize {
		return nil, protocol.NewError(protocol.CodeLength, "parse row", "row data of %d bytes exceeds %d", len(payload), MaxRowDataSize)
	}

	return &Row{
		Address:  binary.LittleEndian.Uint32(data[:RowAddressSize]),
		Data:     payload,
		Checksum: protocol.RowChecksum(payload),
	}, nil
}

// ParseAppInfo parses an "@APPINFO:0x<start>,0x<size>" meta row. Digits
// are accumulated leniently, like FromHex.
func ParseAppInfo(line string) (AppInfo, error) {
	if !strings.HasPrefix(line, AppInfoPrefix) {
		return AppInfo{}, protocol.NewError(protocol.CodeFile, "parse app info", "missing %q prefix", AppInfoPrefix)
	}

	sep := strings.Index(line, appInfoSepStart)
	if sep < 0 || !strings.HasPrefix(line[sep:], AppInfoSep) {
		return AppInfo{}, protocol.NewError(protocol.CodeFile, "parse app info", "missing %q separator", AppInfoSep)
	}

	var info AppInfo
	for i := len(AppInfoPrefix); i < sep; i++ {
		info.Start = info.Start<<4 + uint32(FromHex(line[i]))
	}
	for i := sep + len(AppInfoSep); i < len(line); i++ {
		info.Size = info.Size<<4 + uint32(FromHex(line[i]))
	}
	return info, nil
}

// ParseEIV decodes the vector of an "@EIV:" meta row.
func ParseEIV(line string) ([]byte, error) {
	if !strings.HasPrefix(line, EIVPrefix) {
		return nil, protocol.NewError(protocol.CodeFile, "parse EIV", "missing %q prefix", EIVPrefix)
	}
	return FromASCIIHex(line[len(EIVPrefix):])
}

// ScanAppBounds reads the remaining lines of r to find the application
// start address, size and number of data rows, then rewinds r to where
// it was. An @APPINFO row overrides the values derived from rows; rows
// after it are only counted. Any line that is not a data row, @APPINFO
// or @EIV is ErrFile.
func ScanAppBounds(r *LineReader) (AppBounds, error) {
	mark := r.Mark()
	b := AppBounds{Start: 0xFFFFFFFF}
	appInfoFound := false

	for {
		line, err := r.ReadLine()
		if err != nil {
			if protocol.CodeOf(err) == protocol.CodeEOF {
				break
			}
			return b, err
		}

		switch {
		case strings.HasPrefix(line, DataRowPrefix):
			if !appInfoFound {
				row, err := ParseRow(line)
				if err != nil {
					return b, err
				}
				if row.Address < b.Start {
					b.Start = row.Address
				}
				b.Size += uint32(len(row.Data))
			}
			b.DataLines++
		case strings.HasPrefix(line, AppInfoPrefix):
			info, err := ParseAppInfo(line)
			if err != nil {
				return b, err
			}
			b.Start, b.Size = info.Start, info.Size
			appInfoFound = true
		case strings.HasPrefix(line, EIVPrefix):
		default:
			return b, protocol.NewError(protocol.CodeFile, "scan image", "unexpected line %q", truncate(line, 16))
		}
	}

	if err := r.Reset(mark); err != nil {
		return b, err
	}
	return b, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Parse parses a .cyacd2 file from the given file path.
// Returns the complete firmware structure or an error if parsing fails.
//
// Example:
//
//	fw, err := cyacd.Parse("firmware.cyacd2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Silicon ID: 0x%08X\n", fw.SiliconID)
func Parse(path string) (*Firmware, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &protocol.Error{Code: protocol.CodeFile, Op: "open image", Err: err}
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses a .cyacd2 file from any io.ReadSeeker.
// This is useful for testing and reading from non-file sources.
//
// Example:
//
//	data := strings.NewReader(cyacdContent)
//	fw, err := cyacd.ParseReader(data)
func ParseReader(r io.ReadSeeker) (*Firmware, error) {
	lr := NewLineReader(r)

	header, err := readHeader(lr)
	if err != nil {
		return nil, err
	}

	fw := &Firmware{
		Header: *header,
		Rows:   make([]*Row, 0, DefaultRowCapacity),
	}

	lineNum := 1
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if protocol.CodeOf(err) == protocol.CodeEOF {
				break
			}
			return nil, err
		}
		lineNum++

		switch {
		case strings.HasPrefix(line, DataRowPrefix):
			row, err := ParseRow(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			fw.Rows = append(fw.Rows, row)
		case strings.HasPrefix(line, AppInfoPrefix):
			info, err := ParseAppInfo(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			fw.AppInfo = &info
		case strings.HasPrefix(line, EIVPrefix):
			iv, err := ParseEIV(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			fw.EIV = iv
		}
	}

	if len(fw.Rows) == 0 {
		return nil, protocol.NewError(protocol.CodeData, "parse image", "no rows found in file")
	}

	return fw, nil
}

// readHeader reads the first line and validates version and header.
func readHeader(lr *LineReader) (*Header, error) {
	line, err := lr.ReadLine()
	if err != nil {
		return nil, err
	}
	if _, err := CheckVersion(line); err != nil {
		return nil, err
	}
	return ParseHeader(line)
}
