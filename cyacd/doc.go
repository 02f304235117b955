// Package cyacd provides parsing for Cypress .cyacd2 firmware files.
//
// # CYACD2 File Format
//
// A .cyacd2 file is a text file. The first line is a hex-encoded header,
// followed by data rows and optional meta rows. Lines starting with '#'
// are comments.
//
// Header Format (24 hex characters, little-endian fields):
//
//	[Version(2)][SiliconID(8)][SiliconRev(2)][ChecksumType(2)][AppID(2)][ProductID(8)]
//
// Example header:
//
//	01AA02961E00000102030405
//	  01 = File version (must be 1)
//	  AA02961E = Silicon ID (0x1E9602AA)
//	  00 = Silicon Revision (0x00)
//	  00 = Checksum Type (0x00 = basic summation, 0x01 = CRC-16)
//	  01 = Application ID
//	  02030405 = Product ID (0x05040302)
//
// Data Row Format:
//
//	:[Address(8)][Data(variable)]
//
// Meta rows:
//
//	@APPINFO:0x<start>,0x<size>   application region, overrides the row bounds
//	@EIV:<hex>                    encryption initialization vector
//
// # Usage
//
// Stream an image for programming:
//
//	img, err := cyacd.Open("firmware.cyacd2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	bounds, err := img.ScanAppBounds()
//	for {
//	    line, err := img.NextLine()
//	    if errors.Is(err, protocol.ErrEOF) {
//	        break
//	    }
//	    // ...
//	}
//
// Or load the whole file:
//
//	fw, err := cyacd.Parse("firmware.cyacd2")
//	fmt.Printf("Silicon ID: 0x%08X, %d rows\n", fw.SiliconID, len(fw.Rows))
package cyacd
