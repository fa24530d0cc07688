// Command tamashii reads and rewrites UBI NAND flash images, per
// spec.md §6's CLI contract.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/bgrewell/usage"
	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"

	"github.com/DHCL-LLC/tamashii-go/internal/driver"
	"github.com/DHCL-LLC/tamashii-go/pkg/logging"
	"github.com/DHCL-LLC/tamashii-go/pkg/version"
)

const repoSlug = "DHCL-LLC/tamashii-go"

func main() {
	if len(os.Args) < 2 {
		printTopLevelUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "read":
		// usage.Usage parses os.Args directly, so the subcommand
		// token is stripped before handing control to runRead.
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		os.Exit(runRead())
	case "write":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		os.Exit(runWrite())
	case "--self-update", "-self-update":
		if err := runSelfUpdate(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	default:
		printTopLevelUsage()
		os.Exit(1)
	}
}

func printTopLevelUsage() {
	fmt.Fprintln(os.Stderr, "usage: tamashii read  <image_path> <extract_dir> [-v|--verbose]")
	fmt.Fprintln(os.Stderr, "       tamashii write <image_path> <volume_id> <fdt|kernel|ramdisk> <update_path> <output_path> [-v|--verbose]")
	fmt.Fprintln(os.Stderr, "       tamashii --self-update")
}

func newLogger(verbose bool) *logging.Logger {
	if verbose {
		return logging.NewLogger(logging.NewSimpleLogger(os.Stdout, logging.LEVEL_TRACE, true))
	}
	// Below LEVEL_INFO no Info/Debug/Trace line is enabled; Error calls
	// are still written.
	return logging.NewLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_INFO-1, true))
}

func runRead() int {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("tamashii read"),
		usage.WithApplicationDescription("Locate the UBI region in a NAND image, extract its volumes, and extract any device-image FDT/kernel/RAMdisk payloads they carry."),
	)

	verbose := u.AddBooleanOption("v", "verbose", false, "Print progress to stdout", "", nil)
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	imagePath := u.AddArgument(1, "image_path", "Path to the NAND image to read", "")
	extractDir := u.AddArgument(2, "extract_dir", "Directory to extract into", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		return 1
	}
	if *help {
		u.PrintUsage()
		return 0
	}
	if imagePath == nil || *imagePath == "" || extractDir == nil || *extractDir == "" {
		u.PrintError(fmt.Errorf("both <image_path> and <extract_dir> are required"))
		return 1
	}

	d := driver.New(newLogger(*verbose))
	if err := d.Read(*imagePath, *extractDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runWrite() int {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("tamashii write"),
		usage.WithApplicationDescription("Replace a device image's FDT, kernel, or RAMdisk payload, re-pack the owning UBI volume, and emit a new NAND image."),
	)

	verbose := u.AddBooleanOption("v", "verbose", false, "Print progress to stdout", "", nil)
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	imagePath := u.AddArgument(1, "image_path", "Path to the NAND image to rewrite", "")
	volumeIDArg := u.AddArgument(2, "volume_id", "The target volume's ID", "")
	targetArg := u.AddArgument(3, "target", "One of: fdt, kernel, ramdisk", "")
	updatePath := u.AddArgument(4, "update_path", "Path to the replacement payload", "")
	outputPath := u.AddArgument(5, "output_path", "Path to write the rewritten image to", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		return 1
	}
	if *help {
		u.PrintUsage()
		return 0
	}
	if imagePath == nil || *imagePath == "" || volumeIDArg == nil || *volumeIDArg == "" ||
		targetArg == nil || *targetArg == "" || updatePath == nil || *updatePath == "" ||
		outputPath == nil || *outputPath == "" {
		u.PrintError(fmt.Errorf("all of <image_path> <volume_id> <fdt|kernel|ramdisk> <update_path> <output_path> are required"))
		return 1
	}

	switch *targetArg {
	case "fdt", "kernel", "ramdisk":
	default:
		u.PrintError(fmt.Errorf("target must be one of fdt, kernel, ramdisk, got %q", *targetArg))
		return 1
	}

	volumeID, err := strconv.ParseUint(*volumeIDArg, 10, 32)
	if err != nil {
		u.PrintError(fmt.Errorf("invalid volume_id %q: %w", *volumeIDArg, err))
		return 1
	}

	d := driver.New(newLogger(*verbose))
	if err := d.Write(*imagePath, uint32(volumeID), *targetArg, *updatePath, *outputPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runSelfUpdate(ctx context.Context) error {
	v := version.Version()
	if v == "" || v == "dev" {
		return fmt.Errorf("self-update is only available in release builds")
	}
	if _, err := semver.ParseTolerant(v); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s could not be found from github repository", repoSlug)
	}
	if latest.LessOrEqual(v) {
		fmt.Printf("current binary is the latest version: %s\n", v)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Printf("successfully updated to version: %s\n", latest.Version())
	return nil
}
