package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-cyacd2/bootloader"
	"github.com/moffa90/go-cyacd2/cyacd"
	"github.com/moffa90/go-cyacd2/internal/config"
	"github.com/moffa90/go-cyacd2/internal/logging"
	"github.com/moffa90/go-cyacd2/internal/simulator"
	"github.com/moffa90/go-cyacd2/protocol"
	"github.com/moffa90/go-cyacd2/transport"
)

const (
	actionProgram = bootloader.ActionProgram
	actionErase   = bootloader.ActionErase
	actionVerify  = bootloader.ActionVerify
)

var (
	noProgress bool
	productID  uint64
)

func actionCmd(use, short string, action bootloader.Action) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <image.cyacd2>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, action, args[0])
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw a progress bar")
	cmd.Flags().Uint64Var(&productID, "product-id", 0, "product ID sent to the bootloader instead of the image's")
	return cmd
}

func runAction(cmd *cobra.Command, action bootloader.Action, path string) error {
	cfg, log, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	img, err := cyacd.Open(path)
	if err != nil {
		return &resultError{err: err}
	}
	defer func() { _ = img.Close() }()

	l, err := openLink(cfg, log)
	if err != nil {
		return err
	}
	if l.sim != nil {
		l.sim.SiliconID = img.Header.SiliconID
		l.sim.SiliconRev = img.Header.SiliconRev
		l.sim.Mode = protocol.ChecksumModeFromType(img.Header.ChecksumType)
	}
	if l.jump != nil {
		if err := l.jump(); err != nil {
			return &resultError{err: &protocol.CommError{Op: "jump", Err: err}}
		}
	}

	opts := []bootloader.Option{
		bootloader.WithLogger(log.With("action", action.String(), "image", path)),
		bootloader.WithCommandDelay(cfg.CommandDelay),
		bootloader.WithProductID(productID),
	}
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newProgressBar(action.String())
		opts = append(opts, bootloader.WithProgressCallback(func(p bootloader.Progress) {
			bar.Describe(fmt.Sprintf("%-11s", p.Phase))
			_ = bar.Set(int(p.Percentage))
		}))
	}
	prog := bootloader.New(l, opts...)

	ctx, stop := interruptible(prog, log)
	defer stop()

	err = prog.RunAction(ctx, action, img)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return &resultError{err: err}
	}

	fmt.Printf("%s complete: %s\n", action, path)
	return nil
}

// interruptible aborts prog on the first SIGINT or SIGTERM and cancels
// the returned context on the second.
func interruptible(prog *bootloader.Programmer, log *logging.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		n := 0
		for range sigs {
			n++
			if n == 1 {
				log.Info("interrupt received, stopping after the current row")
				prog.Abort()
				continue
			}
			cancel()
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		close(sigs)
		cancel()
	}
}

func newProgressBar(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("%-11s", desc)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a bootloader is running on the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		l, err := openLink(cfg, log)
		if err != nil {
			return err
		}
		if l.jump != nil {
			if err := l.jump(); err != nil {
				return &resultError{err: &protocol.CommError{Op: "jump", Err: err}}
			}
		}

		prog := bootloader.New(l, bootloader.WithLogger(log), bootloader.WithCommandDelay(cfg.CommandDelay))
		if err := prog.Probe(cmd.Context()); err != nil {
			return &resultError{err: err}
		}
		fmt.Println("bootloader is active")
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <image.cyacd2>",
	Short: "Show the header and layout of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fw, err := cyacd.Parse(args[0])
		if err != nil {
			return &resultError{err: err}
		}
		b := fw.Bounds()

		fmt.Printf("File:          %s\n", args[0])
		fmt.Printf("Version:       %d\n", fw.Version)
		fmt.Printf("Silicon ID:    0x%08X\n", fw.SiliconID)
		fmt.Printf("Silicon rev:   0x%02X\n", fw.SiliconRev)
		fmt.Printf("Checksum:      %s\n", protocol.ChecksumModeFromType(fw.ChecksumType))
		fmt.Printf("App ID:        %d\n", fw.AppID)
		fmt.Printf("Product ID:    0x%08X\n", fw.ProductID)
		fmt.Printf("App start:     0x%08X\n", b.Start)
		fmt.Printf("App size:      %d bytes\n", b.Size)
		fmt.Printf("Rows:          %d\n", b.DataLines)
		if fw.AppInfo != nil {
			fmt.Println("App info:      from @APPINFO")
		}
		if fw.EIV != nil {
			fmt.Printf("EIV:           %d bytes\n", len(fw.EIV))
		}
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListSerialPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

var (
	simListen     string
	simSiliconID  uint32
	simSiliconRev uint8
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve the simulated bootloader over WebSocket",
	Long: `Serve an in-memory bootloader to WebSocket clients, so that a second
cydfu can use --transport websocket against it.`,
	Example: `  cydfu simulate --listen 127.0.0.1:8765 --silicon-id 0x1E9602AA
  cydfu program firmware.cyacd2 --transport websocket --url ws://127.0.0.1:8765/`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ResolveLevel(flags.logLevel, "info")
		if err != nil {
			return err
		}
		log := logging.New(level, os.Stderr)

		dev := simulator.New()
		dev.SiliconID = simSiliconID
		dev.SiliconRev = simSiliconRev
		dev.Log = log.Logrus().WithField("component", "simulator")

		log.Info("serving simulator", "listen", simListen, "silicon_id", fmt.Sprintf("0x%08X", simSiliconID))
		return http.ListenAndServe(simListen, simulator.Handler(dev, log.Logrus()))
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simListen, "listen", "127.0.0.1:8765", "address to listen on")
	simulateCmd.Flags().Uint32Var(&simSiliconID, "silicon-id", simulator.DefaultSiliconID, "silicon ID reported by the device")
	simulateCmd.Flags().Uint8Var(&simSiliconRev, "silicon-rev", simulator.DefaultSiliconRev, "silicon revision reported by the device")

	configCmd.AddCommand(configInitCmd, configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the cydfu profile",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flags.configPath
		if path == "" {
			p, err := config.Path()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return yamlEncode(os.Stdout, cfg)
	},
}
