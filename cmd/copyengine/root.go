package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/copyengine/mem/copyengine"
	"github.com/spf13/cobra"
)

var errDataMismatch = errors.New("destination does not match the source")

// newRootCmd creates the command tree. Flag defaults come from cfg, which may
// already carry values from the environment.
func newRootCmd(cfg config, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "copyengine",
		Short: "Simulate a DMA copy engine moving data between memories.",
		Long: `copyengine builds a host memory, a device memory, and a copy ` +
			`engine between them, runs a single memcpy or memset, and prints ` +
			`the transfer statistics. Defaults can be set in a .env file with ` +
			`COPYENGINE_* variables.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	c := &cfg
	flags := rootCmd.PersistentFlags()
	flags.Uint64Var(&c.chunkSize, "chunk-size", c.chunkSize,
		"Largest number of bytes moved by one memory transaction.")
	flags.IntVar(&c.accessDelay, "access-delay", c.accessDelay,
		"Cycles between two transactions on the same side.")
	flags.IntVar(&c.driverDelay, "driver-delay", c.driverDelay,
		"Cycles between accepting a transfer and issuing its first chunk.")
	flags.IntVar(&c.memLatency, "mem-latency", c.memLatency,
		"Access latency of both memories in cycles.")
	flags.Uint64Var(&c.memSize, "mem-size", c.memSize,
		"Capacity of each memory in bytes.")
	flags.IntVar(&c.pageWalkLatency, "page-walk-latency", c.pageWalkLatency,
		"Cycles needed to translate an address.")
	flags.StringVar(&c.statsFile, "stats-file", c.statsFile,
		"Write the transfer statistics as CSV to this file at exit.")
	flags.StringVar(&c.record, "record", c.record,
		"Record transfers and traces into this SQLite database "+
			"(.sqlite3 is appended).")
	flags.BoolVar(&c.monitor, "monitor", c.monitor,
		"Serve the monitoring web page while simulating.")
	flags.IntVar(&c.monitorPort, "monitor-port", c.monitorPort,
		"Port of the monitoring web page. Random if not set.")
	flags.BoolVar(&c.openMonitor, "open-monitor", c.openMonitor,
		"Open the monitoring web page in a browser. Implies --monitor.")
	flags.BoolVar(&c.logEvents, "log-events", c.logEvents,
		"Log every event to stderr.")
	flags.BoolVar(&c.logMsgs, "log-msgs", c.logMsgs,
		"Log every message crossing a port to stderr.")
	flags.BoolVar(&c.traceMem, "trace-mem", c.traceMem,
		"Log every transaction served by the memories to stderr.")
	flags.BoolVar(&c.skipVerification, "no-verify", c.skipVerification,
		"Do not compare the destination with the expected data.")

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if c.openMonitor {
			c.monitor = true
		}

		if c.chunkSize == 0 {
			return fmt.Errorf("%w: chunk size must be positive",
				copyengine.ErrInvalidRequest)
		}

		return nil
	}

	rootCmd.AddCommand(newMemcpyCmd(c), newMemsetCmd(c))

	return rootCmd
}

func newMemcpyCmd(cfg *config) *cobra.Command {
	var (
		src, dst, length uint64
		direction        string
	)

	cmd := &cobra.Command{
		Use:   "memcpy",
		Short: "Copy --length bytes from --src to --dst.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := copyengine.ParseDirection(direction)
			if err != nil {
				return err
			}

			return runMemcpy(*cfg, cmd.OutOrStdout(), src, dst, length, dir)
		},
	}

	cmd.Flags().Uint64Var(&src, "src", 0x1000_0000, "Source virtual address.")
	cmd.Flags().Uint64Var(&dst, "dst", 0x2000_0000,
		"Destination virtual address.")
	cmd.Flags().Uint64Var(&length, "length", 4096, "Number of bytes to copy.")
	cmd.Flags().StringVar(&direction, "direction", "HostToDevice",
		"One of HostToDevice, DeviceToHost, HostToHost, DeviceToDevice.")

	return cmd
}

func newMemsetCmd(cfg *config) *cobra.Command {
	var (
		dst, length uint64
		value       uint8
	)

	cmd := &cobra.Command{
		Use:   "memset",
		Short: "Fill --length bytes of device memory at --dst with --value.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMemset(*cfg, cmd.OutOrStdout(), dst, value, length)
		},
	}

	cmd.Flags().Uint64Var(&dst, "dst", 0x2000_0000,
		"Destination virtual address in device memory.")
	cmd.Flags().Uint8Var(&value, "value", 0, "Byte value to fill with.")
	cmd.Flags().Uint64Var(&length, "length", 4096, "Number of bytes to fill.")

	return cmd
}

func pattern(n uint64) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}

	return data
}

func overlaps(aSpace, bSpace copyengine.Space, a, b, length uint64) bool {
	return aSpace == bSpace && a < b+length && b < a+length
}

func runMemcpy(
	cfg config,
	out io.Writer,
	src, dst, length uint64,
	direction copyengine.Direction,
) error {
	p := buildPlatform(cfg)

	srcSpace, dstSpace := direction.Spaces()
	from, to := p.spaceOf(srcSpace), p.spaceOf(dstSpace)
	from.mapRange(src, length)
	to.mapRange(dst, length)

	data := pattern(length)
	if err := from.write(src, data); err != nil {
		return err
	}

	if err := p.ce.Memcpy(src, dst, length, direction); err != nil {
		return err
	}

	result, err := p.run()
	if err != nil {
		return err
	}

	if result.Err != nil {
		return result.Err
	}

	if !cfg.skipVerification && !overlaps(srcSpace, dstSpace, src, dst, length) {
		if err := verify(to, dst, data); err != nil {
			return err
		}
	}

	return report(out, p, result)
}

func runMemset(
	cfg config,
	out io.Writer,
	dst uint64,
	value byte,
	length uint64,
) error {
	p := buildPlatform(cfg)
	p.device.mapRange(dst, length)

	if err := p.ce.Memset(dst, value, length); err != nil {
		return err
	}

	result, err := p.run()
	if err != nil {
		return err
	}

	if result.Err != nil {
		return result.Err
	}

	if !cfg.skipVerification {
		if err := verify(p.device, dst, bytes.Repeat([]byte{value}, int(length))); err != nil {
			return err
		}
	}

	return report(out, p, result)
}

func verify(s *addressSpace, addr uint64, expected []byte) error {
	actual, err := s.read(addr, uint64(len(expected)))
	if err != nil {
		return err
	}

	for i := range expected {
		if actual[i] != expected[i] {
			return fmt.Errorf("%w: first difference at 0x%x",
				errDataMismatch, addr+uint64(i))
		}
	}

	return nil
}

func report(
	out io.Writer,
	p *platform,
	result copyengine.TransferResult,
) error {
	r := result.Record
	fmt.Fprintf(out, "%s of %d bytes took %d cycles (%.9f s)\n",
		r.Kind, r.Bytes, r.Cycles, float64(r.Duration()))

	return p.ce.ExportStats(out)
}
