// Package bootloader runs bootload sessions that program, erase or
// verify Cypress/Infineon microcontrollers from .cyacd2 images.
//
// # Overview
//
// A session walks the image once, line by line:
//   - Open the transport and enter the bootloader
//   - Check the device silicon ID and revision against the image header
//   - Send the application metadata found by a pre-scan of the rows
//   - Apply the action to every data row, setting the encryption IV on @EIV rows
//   - Check the application checksum (program and verify only)
//   - Exit the bootloader and close the transport
//
// Rows too large for one packet are streamed with send-data commands;
// the final program or verify command carries the CRC32C of the row.
//
// # Basic Usage
//
//	t := transport.NewSerial(transport.SerialConfig{Port: "/dev/ttyUSB0"})
//	prog := bootloader.New(t)
//
//	if err := prog.Program(context.Background(), "firmware.cyacd2"); err != nil {
//	    log.Fatalf("%v (result 0x%04X)", err, uint16(protocol.CodeOf(err)))
//	}
//
// Images already open, or not backed by a file, go through RunAction:
//
//	img, err := cyacd.NewImage(bytes.NewReader(data))
//	if err != nil {
//	    return err
//	}
//	err = prog.RunAction(ctx, bootloader.ActionVerify, img)
//
// # Progress Tracking
//
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Row %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentRow, p.TotalRows)
//	    }),
//	)
//
// # Stopping a Session
//
// Abort, or cancelling the context, stops the session before its next
// image line. The bootloader is still exited and the transport closed,
// and the error maps to protocol.CodeAbort.
//
// # Error Handling
//
// Every error maps to one numeric result with protocol.CodeOf:
//   - *protocol.CommError: the transport failed (CommMask set)
//   - *protocol.ProtocolError: the device reported a status (BtldrMask set)
//   - DeviceMismatchError: silicon ID or revision differ (protocol.ErrDevice)
//   - VerificationError: the application checksum is invalid (protocol.ErrChecksum)
//   - RowError: wraps any of the above with the image line and address
//
// After a transport failure no exit command is sent.
package bootloader
