package bootloader_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/moffa90/go-cyacd2/bootloader"
	"github.com/moffa90/go-cyacd2/cyacd"
	"github.com/moffa90/go-cyacd2/internal/simulator"
	"github.com/moffa90/go-cyacd2/protocol"
)

const exampleImage = `01AA02961E00000100000000
# comment lines are skipped
@APPINFO:0x100,0x8
:0001000001020304
:0002000005060708
`

func ExampleProgrammer_RunAction() {
	device := simulator.New()

	img, err := cyacd.NewImage(strings.NewReader(exampleImage))
	if err != nil {
		fmt.Println(err)
		return
	}

	prog := bootloader.New(device,
		bootloader.WithProgressCallback(func(p bootloader.Progress) {
			fmt.Printf("%s %d/%d\n", p.Phase, p.CurrentRow, p.TotalRows)
		}),
	)

	err = prog.RunAction(context.Background(), bootloader.ActionProgram, img)
	fmt.Printf("result 0x%04X\n", uint16(protocol.CodeOf(err)))
	// Output:
	// entering 0/0
	// programming 1/2
	// programming 2/2
	// verifying 2/2
	// exiting 2/2
	// complete 2/2
	// result 0x0000
}

func ExampleProgrammer_Probe() {
	device := simulator.New()
	prog := bootloader.New(device)

	if err := prog.Probe(context.Background()); err != nil {
		fmt.Println("no bootloader:", err)
		return
	}
	fmt.Println("bootloader is active")
	// Output: bootloader is active
}

func ExampleProgrammer_Abort() {
	device := simulator.New()
	img, _ := cyacd.NewImage(strings.NewReader(exampleImage))

	var prog *bootloader.Programmer
	prog = bootloader.New(device,
		bootloader.WithProgressCallback(func(p bootloader.Progress) {
			if p.CurrentRow == 1 {
				prog.Abort()
			}
		}),
	)

	err := prog.RunAction(context.Background(), bootloader.ActionProgram, img)
	fmt.Printf("rows %d, result 0x%04X\n", device.Rows(), uint16(protocol.CodeOf(err)))
	// Output: rows 1, result 0x00AB
}
