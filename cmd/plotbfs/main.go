// plotbfs is the BFS device CLI: init, list, write, read, delete, convert,
// and perms over a raw block device, per spec §4.6/§4.8/§6.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vorteil/plotkit/pkg/bfsfs"
	"github.com/vorteil/plotkit/pkg/elog"
	"github.com/vorteil/plotkit/pkg/rawio"
)

var log elog.View

var (
	flagVerbose       bool
	flagDebug         bool
	flagConvertToPoc2 bool
	flagMode          string
)

var rootCmd = &cobra.Command{
	Use:   "plotbfs",
	Short: "Manage a filesystem-free raw-device plot store (BFS)",
}

func commandInit() {

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := &elog.CLI{}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)
		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}
		log = logger
		return nil
	}

	writeCmd.Flags().BoolVar(&flagConvertToPoc2, "convert", false, "convert POC1 sources to POC2 as part of the write")
	permsCmd.Flags().StringVar(&flagMode, "mode", "0660", "octal file mode to apply")

	for _, c := range []*cobra.Command{initCmd, listCmd, listLongCmd, writeCmd, writeConvertCmd, readCmd, deleteCmd, convertCmd, permsCmd} {
		rootCmd.AddCommand(c)
	}
}

func expandDevices(pattern string) []string {
	devices, err := rawio.ExpandDevicePattern(pattern)
	if err != nil {
		log.Errorf("%s: %v", pattern, err)
		return nil
	}
	return devices
}

var initCmd = &cobra.Command{
	Use:     "init <device>",
	Aliases: []string{"i"},
	Short:   "Destroy and reinitialize a BFS device's table of contents",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		fmt.Printf("Really want to delete all data on %s (y/n)? ", args[0])
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if len(answer) == 0 || (answer[0] != 'y' && answer[0] != 'Y') {
			log.Infof("aborted")
			return nil
		}

		return bfsfs.Init(args[0])
	},
}

func listOne(path string, long bool) error {

	b, err := bfsfs.Open(path)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, freeBytes, freeNonces := b.List()
	fmt.Printf("%s:\n", path)
	for _, e := range entries {
		label := e.StatusLabel()
		if long {
			fmt.Printf("  %-40s startPos=%d size=%d stagger=%d%s\n", e.Filename, e.StartPos, e.Size, e.Stagger, suffixFor(label))
		} else {
			fmt.Printf("  %s%s\n", e.Filename, suffixFor(label))
		}
	}
	fmt.Printf("  free: %d bytes (%d nonces)\n", freeBytes, freeNonces)

	return nil
}

func suffixFor(label string) string {
	if label == "" {
		return ""
	}
	return " " + label
}

var listCmd = &cobra.Command{
	Use:     "list <device...>",
	Aliases: []string{"l"},
	Short:   "List a BFS device's live plots and free space",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachDevice(args, func(p string) error { return listOne(p, false) })
	},
}

var listLongCmd = &cobra.Command{
	Use:     "list-long <device...>",
	Aliases: []string{"L"},
	Short:   "List a BFS device's live plots with full slot detail",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eachDevice(args, func(p string) error { return listOne(p, true) })
	},
}

func eachDevice(patterns []string, fn func(string) error) error {
	var fatal error
	for _, pattern := range patterns {
		for _, dev := range expandDevices(pattern) {
			if err := fn(dev); err != nil {
				log.Errorf("%s: %v", dev, err)
				fatal = err
			}
		}
	}
	return fatal
}

func writeFiles(device string, files []string, convert bool) error {

	b, err := bfsfs.Open(device)
	if err != nil {
		return err
	}
	defer b.Close()

	var fatal error
	for _, f := range files {
		p := log.NewProgress(f, "KiB", 0)
		var last int64
		err := b.Write(f, convert, func(n int64) {
			p.Increment(n - last)
			last = n
		})
		p.Finish(err == nil)
		if err != nil {
			log.Errorf("%s: %v", f, err)
			fatal = err
		}
	}

	return fatal
}

var writeCmd = &cobra.Command{
	Use:     "write <device> <file...>",
	Aliases: []string{"w"},
	Short:   "Write plot files onto a BFS device",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeFiles(args[0], args[1:], flagConvertToPoc2)
	},
}

var writeConvertCmd = &cobra.Command{
	Use:     "write-convert <device> <file...>",
	Aliases: []string{"W"},
	Short:   "Write plot files onto a BFS device, converting POC1 sources to POC2",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeFiles(args[0], args[1:], true)
	},
}

var readCmd = &cobra.Command{
	Use:     "read <device> <file...>",
	Aliases: []string{"r"},
	Short:   "Copy plot files off a BFS device",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		b, err := bfsfs.Open(args[0])
		if err != nil {
			return err
		}
		defer b.Close()

		var fatal error
		for _, f := range args[1:] {
			if err := b.Read(f, f, nil); err != nil {
				log.Errorf("%s: %v", f, err)
				fatal = err
			}
		}
		return fatal
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <device> <file...>",
	Aliases: []string{"d"},
	Short:   "Remove plot slots from a BFS device's table of contents",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		b, err := bfsfs.Open(args[0])
		if err != nil {
			return err
		}
		defer b.Close()

		var fatal error
		for _, f := range args[1:] {
			if err := b.Delete(f); err != nil {
				log.Errorf("%s: %v", f, err)
				fatal = err
			}
		}
		return fatal
	},
}

var convertCmd = &cobra.Command{
	Use:     "convert <device> <file...>",
	Aliases: []string{"c"},
	Short:   "Run the POC1->POC2 shuffle on already-written plots",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		var fatal error
		for _, dev := range expandDevices(args[0]) {
			b, err := bfsfs.Open(dev)
			if err != nil {
				log.Errorf("%s: %v", dev, err)
				fatal = err
				continue
			}
			for _, f := range args[1:] {
				if err := b.Convert(f); err != nil {
					log.Errorf("%s: %s: %v", dev, f, err)
					fatal = err
				}
			}
			b.Close()
		}
		return fatal
	},
}

var permsCmd = &cobra.Command{
	Use:     "perms <device...>",
	Aliases: []string{"p"},
	Short:   "Set the underlying device file's permission bits",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		mode, err := strconv.ParseUint(flagMode, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid --mode %q: %w", flagMode, err)
		}

		return eachDevice(args, func(p string) error {
			return os.Chmod(p, os.FileMode(mode))
		})
	},
}

func main() {
	commandInit()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
