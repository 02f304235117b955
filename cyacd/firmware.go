package cyacd

// Header is the first line of a .cyacd2 file.
type Header struct {
	// Version is the file format version, always 1
	Version byte

	// SiliconID is the device silicon ID (4 bytes)
	SiliconID uint32

	// SiliconRev is the silicon revision (1 byte)
	SiliconRev byte

	// ChecksumType selects the packet checksum:
	//   0x00 = Basic summation
	//   0x01 = CRC-16-CCITT
	ChecksumType byte

	// AppID is the application slot the image targets
	AppID byte

	// ProductID is sent with Enter Bootloader. The file carries 32 bits.
	ProductID uint64
}

// Row represents a single data row (":" line) of the file.
type Row struct {
	// Address is the absolute flash address of the row
	Address uint32

	// Data is the flash row data to be programmed
	Data []byte

	// Checksum is the 8-bit sum of Data
	Checksum byte
}

// AppInfo is the "@APPINFO" meta row.
type AppInfo struct {
	Start uint32
	Size  uint32
}

// AppBounds is the result of a pre-scan over the data rows.
type AppBounds struct {
	// Start is the lowest row address, or the @APPINFO start
	Start uint32

	// Size is the sum of row payload sizes, or the @APPINFO size
	Size uint32

	// DataLines is the number of ":" rows in the file
	DataLines uint32
}

// Firmware represents a complete parsed .cyacd2 firmware file.
type Firmware struct {
	Header

	// AppInfo is set when the file has an @APPINFO row
	AppInfo *AppInfo

	// EIV is the encryption initialization vector, nil if absent
	EIV []byte

	// Rows contains all flash rows in file order
	Rows []*Row
}

// Bounds returns the application region covered by the firmware, using
// the same rules as ScanAppBounds.
func (fw *Firmware) Bounds() AppBounds {
	b := AppBounds{Start: 0xFFFFFFFF, DataLines: uint32(len(fw.Rows))}
	if fw.AppInfo != nil {
		b.Start, b.Size = fw.AppInfo.Start, fw.AppInfo.Size
		return b
	}
	for _, row := range fw.Rows {
		if row.Address < b.Start {
			b.Start = row.Address
		}
		b.Size += uint32(len(row.Data))
	}
	return b
}
