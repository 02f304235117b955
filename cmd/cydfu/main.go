// Cydfu programs, erases and verifies Cypress/Infineon PSoC devices from
// .cyacd2 images through their DFU bootloader.
//
// The bootloader can be reached over a serial port, USB, a Linux I2C bus
// or a WebSocket bridge; the built-in simulator stands in for hardware.
//
// See 'cydfu --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-cyacd2/protocol"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var re *resultError
		if errors.As(err, &re) {
			fmt.Fprintf(os.Stderr, "Error: %v (result 0x%04X)\n", re.err, uint16(protocol.CodeOf(re.err)))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// resultError marks a failed bootload operation, reported with its code.
type resultError struct {
	err error
}

func (e *resultError) Error() string { return e.err.Error() }
func (e *resultError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "cydfu",
	Short: "Cypress/Infineon cyacd2 bootloader host",
	Long: `Program, erase and verify PSoC devices from .cyacd2 images.

The device is reached through one of these transports:
  - serial     UART bootloader (default /dev/ttyUSB0 at 115200 baud)
  - usb        USB HID bootloader (default VID 04B4 PID B71D)
  - i2c        Linux i2c-dev bus, with filler resynchronization
  - websocket  network bridge relaying bootloader bytes
  - simulator  in-memory bootloader, no hardware needed

Settings come from flags, then $CYDFU_LOG_LEVEL for the log level, then
the profile at ~/.config/cydfu/config.yaml.`,
	Version:       versionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `  # Program over a serial port
  cydfu program firmware.cyacd2 --port /dev/ttyACM0

  # Verify over I2C, asking the application to jump to its bootloader
  cydfu verify firmware.cyacd2 --transport i2c --bus /dev/i2c-1 --address 0x08 --app-address 0x24 --jump

  # Try an image against the simulator
  cydfu program firmware.cyacd2 --simulate`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	addTransportFlags(rootCmd)

	rootCmd.AddCommand(
		actionCmd("program", "Program an image into flash", actionProgram),
		actionCmd("erase", "Erase the flash rows of an image", actionErase),
		actionCmd("verify", "Verify flash against an image", actionVerify),
		probeCmd,
		infoCmd,
		portsCmd,
		simulateCmd,
		configCmd,
		versionCmd,
	)
}
