package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"forge-go/internal/app"
	"forge-go/internal/config"
	"forge-go/internal/forge"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ForgeApp. The caller must defer
// app.Close(). A missing config file is not an error: defaults are used, so
// `forge list` and friends work out of the box.
func newApp() (*app.ForgeApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		cfg = config.NewConfig(defaults["base_dir"])
	}

	a, err := app.NewForgeApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Safe removable-media imaging tool",
}

// write command
var writeCmd = &cobra.Command{
	Use:   "write IMAGE [DEVICE]",
	Short: "Write a disk image to a removable device",
	Long: `Write a disk image to a removable device.

Compressed images (.gz, .xz, .zst) are decompressed on the fly. When DEVICE
is omitted, a device is selected interactively from the removable devices
found on the system.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		noVerify, _ := cmd.Flags().GetBool("no-verify")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		imagePath := args[0]
		if _, err := os.Stat(imagePath); err != nil {
			return fmt.Errorf("image %s: %w", imagePath, err)
		}

		var device forge.BlockDevice
		if len(args) == 2 {
			device, err = resolveDevice(a, args[1])
		} else {
			device, err = selectDevice(a)
		}
		if err != nil {
			return err
		}

		fmt.Printf("WARNING: all data on %s (%.1f GB) %s will be destroyed.\n",
			device.Path, device.SizeGB(), device.MountStatus())
		if !confirm(fmt.Sprintf("Write %s to %s?", imagePath, device.Path)) {
			fmt.Println("Aborted.")
			return nil
		}

		restore := saveTerminalState()
		defer restore()

		cancel := watchInterrupts()
		renderer := newProgressRenderer()
		defer renderer.Finish()

		verify := a.Config().Verify && !noVerify
		result, err := a.WriteImage(imagePath, device.Path, verify, renderer.Observe, cancel)
		if err != nil {
			return err
		}
		renderer.Finish()

		fmt.Printf("✨ Successfully flashed %s to %s (%s in %s, %.1f MiB/s)\n",
			imagePath, device.Path,
			humanize.IBytes(uint64(result.Stats.BytesCopied)),
			result.Stats.Elapsed.Truncate(time.Millisecond),
			result.Stats.AvgMiBps())
		if result.Verified {
			fmt.Println("Verification passed.")
		}
		return nil
	},
}

// read command
var readCmd = &cobra.Command{
	Use:   "read [DEVICE] IMAGE",
	Short: "Capture a removable device into an image file",
	Long: `Capture the full contents of a removable device into a new image file.

When DEVICE is omitted, a device is selected interactively from the removable
devices found on the system.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var device forge.BlockDevice
		var imagePath string
		if len(args) == 2 {
			device, err = resolveDevice(a, args[0])
			imagePath = args[1]
		} else {
			device, err = selectDevice(a)
			imagePath = args[0]
		}
		if err != nil {
			return err
		}

		if _, err := os.Stat(imagePath); err == nil {
			return fmt.Errorf("image %s already exists", imagePath)
		}

		restore := saveTerminalState()
		defer restore()

		cancel := watchInterrupts()
		renderer := newProgressRenderer()
		defer renderer.Finish()

		stats, err := a.ReadDevice(device.Path, imagePath, renderer.Observe, cancel)
		if err != nil {
			return err
		}
		renderer.Finish()

		fmt.Printf("✨ Successfully captured %s to %s (%s in %s, %.1f MiB/s)\n",
			device.Path, imagePath,
			humanize.IBytes(uint64(stats.BytesCopied)),
			stats.Elapsed.Truncate(time.Millisecond),
			stats.AvgMiBps())
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List removable devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		devices, err := a.ListDevices()
		if err != nil {
			return err
		}

		if len(devices) == 0 {
			fmt.Println("No removable devices found.")
			return nil
		}

		for _, d := range devices {
			fmt.Println(d.String())
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View imaging operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No imaging operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			verified := ""
			if op.Verified {
				verified = "verified"
			}
			fmt.Printf("#%d  %-5s  %s  %-9s  %-10s  %s -> %s  %s %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				humanize.IBytes(uint64(op.Bytes)),
				op.ImagePath,
				op.DevicePath,
				duration,
				verified,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Verify:   %t\n", cfg.Verify)
		fmt.Printf("Database: %s\n", cfg.Database.Type)
		return nil
	},
}

// resolveDevice checks that an explicitly named device is in the removable
// catalog. Paths outside the catalog are refused: the catalog is the safety
// boundary, not a suggestion.
func resolveDevice(a *app.ForgeApp, path string) (forge.BlockDevice, error) {
	devices, err := a.ListDevices()
	if err != nil {
		return forge.BlockDevice{}, err
	}
	for _, d := range devices {
		if d.Path == path {
			return d, nil
		}
	}
	return forge.BlockDevice{}, fmt.Errorf("%s is not a removable device", path)
}

func init() {
	writeCmd.Flags().BoolP("no-verify", "n", false, "Skip post-write verification")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
