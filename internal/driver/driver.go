// Package driver orchestrates the read and write workflows on top of
// pkg/ubi, pkg/deviceimage, and pkg/bootargs: the "Driver" component
// of spec.md §2, kept outside the core parsing/rewriting layers.
package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theckman/yacspin"
	"golang.org/x/term"

	"github.com/DHCL-LLC/tamashii-go/pkg/bootargs"
	"github.com/DHCL-LLC/tamashii-go/pkg/deviceimage"
	"github.com/DHCL-LLC/tamashii-go/pkg/hexdump"
	"github.com/DHCL-LLC/tamashii-go/pkg/logging"
	"github.com/DHCL-LLC/tamashii-go/pkg/ubi"
)

// Driver wires a logger through the read/write workflows and gates
// the yacspin progress spinner to runs whose stdout is a terminal;
// the logger's verbosity does not affect the spinner.
type Driver struct {
	log     *logging.Logger
	spinTTY bool
}

// New returns a Driver that logs through log. Spinner output is only
// attempted when stdout is a terminal.
func New(log *logging.Logger) *Driver {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Driver{
		log:     log,
		spinTTY: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (d *Driver) newSpinner(suffix string) *yacspin.Spinner {
	if !d.spinTTY {
		return nil
	}
	cfg := yacspin.Config{
		Frequency:       100_000_000,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " " + suffix,
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		return nil
	}
	_ = s.Start()
	return s
}

func stopSpinner(s *yacspin.Spinner) {
	if s != nil {
		_ = s.Stop()
	}
}

// Read performs spec.md §6's read workflow: locate the UBI region,
// extract the bracketing raw bytes, every volume's reconstructed
// contents, and (for volumes that carry one) the device image's
// FDT/kernel/RAMdisk sub-payloads.
func (d *Driver) Read(imagePath, extractDir string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("driver: reading image: %w", err)
	}

	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return fmt.Errorf("driver: creating extract dir: %w", err)
	}

	spin := d.newSpinner("locating UBI region")
	container, err := ubi.Decode(data)
	stopSpinner(spin)
	if err != nil {
		return fmt.Errorf("driver: decoding UBI: %w", err)
	}
	d.log.Info("detected UBI region",
		"start", fmt.Sprintf("0x%08X", container.StartOffset),
		"end", fmt.Sprintf("0x%08X", container.EndOffset),
		"blocks", len(container.Blocks),
		"blockSize", hexdump.Bytes(uint64(container.BlockSize)))
	if container.Warnings != nil {
		for _, w := range container.Warnings.Errors {
			d.log.Debug("tolerated corrupt header", "reason", w.Error())
		}
	}

	if err := d.extractBracketingData(extractDir, data, container); err != nil {
		return err
	}

	vtrs, err := container.VolumeTable()
	if err != nil {
		return fmt.Errorf("driver: reading volume table: %w", err)
	}

	args, bootErr := bootargs.Decode(data)
	if bootErr != nil {
		d.log.Debug("no boot arguments found; device image extraction will be skipped", "reason", bootErr.Error())
	}

	for _, vtr := range vtrs {
		if err := d.extractVolume(extractDir, container, vtr, args, bootErr == nil); err != nil {
			return err
		}
	}

	return nil
}

func (d *Driver) extractBracketingData(extractDir string, data []byte, c *ubi.Container) error {
	start := data[:c.StartOffset]
	if len(start) > 0 {
		p := filepath.Join(extractDir, fmt.Sprintf("data-0x%08X-0x%08X.bin", 0, c.StartOffset))
		d.log.Info("extracting leading data", "path", p, "size", hexdump.Bytes(uint64(len(start))))
		if err := os.WriteFile(p, start, 0o644); err != nil {
			return fmt.Errorf("driver: writing leading data: %w", err)
		}
	} else {
		d.log.Debug("no leading data in the image")
	}

	end := data[c.EndOffset:]
	if len(end) > 0 {
		p := filepath.Join(extractDir, fmt.Sprintf("data-0x%08X-0x%08X.bin", c.EndOffset, len(data)))
		d.log.Info("extracting trailing data", "path", p, "size", hexdump.Bytes(uint64(len(end))))
		if err := os.WriteFile(p, end, 0o644); err != nil {
			return fmt.Errorf("driver: writing trailing data: %w", err)
		}
	} else {
		d.log.Debug("no trailing data in the image")
	}
	return nil
}

func (d *Driver) extractVolume(extractDir string, c *ubi.Container, vtr *ubi.VolumeTableRecord, args bootargs.Arguments, haveBootArgs bool) error {
	volumeDir := filepath.Join(extractDir, "ubi", fmt.Sprintf("volume-%d-%s", vtr.VolumeID, vtr.NameString()))
	if err := os.MkdirAll(volumeDir, 0o755); err != nil {
		return fmt.Errorf("driver: creating volume dir: %w", err)
	}

	volume := c.ReadVolume(vtr)

	dataPath := filepath.Join(volumeDir, "data.bin")
	d.log.Info("extracting volume", "id", vtr.VolumeID, "name", vtr.NameString(), "path", dataPath, "size", hexdump.Bytes(uint64(len(volume))))
	if err := os.WriteFile(dataPath, volume, 0o644); err != nil {
		return fmt.Errorf("driver: writing volume data: %w", err)
	}

	if !haveBootArgs {
		return nil
	}

	img, err := deviceimage.Decode(volume)
	if err != nil {
		d.log.Debug("volume does not carry a device image", "id", vtr.VolumeID, "reason", err.Error())
		return nil
	}

	imageDir := filepath.Join(volumeDir, fmt.Sprintf("image-0x%X", img.Header.ImageSHA1))
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return fmt.Errorf("driver: creating device image dir: %w", err)
	}
	d.log.Info("extracting device image", "sha1", fmt.Sprintf("0x%X", img.Header.ImageSHA1))

	fdtPos, fdtErr := args.FDTPosition()
	kernelPos, kernelErr := args.KernelPosition()
	ramdiskPos, ramdiskErr := args.RAMdiskPosition()

	type target struct {
		name string
		pos  uint64
		err  error
		kind string
	}
	for _, t := range []target{
		{"fdt.bin", fdtPos, fdtErr, "fdt"},
		{"kernel.bin", kernelPos, kernelErr, "uimage"},
		{"ramdisk.bin", ramdiskPos, ramdiskErr, "uimage"},
	} {
		if t.err != nil {
			d.log.Debug("skipping sub-payload: boot argument not found", "name", t.name, "reason", t.err.Error())
			continue
		}
		var payload []byte
		var extractErr error
		if t.kind == "fdt" {
			payload, extractErr = img.ExtractFDT(int(t.pos))
		} else {
			payload, extractErr = img.ExtractUImage(int(t.pos))
		}
		if extractErr != nil {
			d.log.Debug("skipping sub-payload: extraction failed", "name", t.name, "reason", extractErr.Error())
			continue
		}
		outPath := filepath.Join(imageDir, t.name)
		d.log.Info("extracting sub-payload", "path", outPath, "size", hexdump.Bytes(uint64(len(payload))))
		if err := os.WriteFile(outPath, payload, 0o644); err != nil {
			return fmt.Errorf("driver: writing %s: %w", t.name, err)
		}
	}
	return nil
}

// Write performs spec.md §6's write workflow: locate the target
// volume, decode its device image, splice in the new payload for the
// requested target, refresh the image SHA-1, re-pack the volume into
// fresh physical erase blocks, and emit the rewritten NAND dump.
func (d *Driver) Write(imagePath string, volumeID uint32, target string, updatePath, outputPath string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("driver: reading image: %w", err)
	}

	container, err := ubi.Decode(data)
	if err != nil {
		return fmt.Errorf("driver: decoding UBI: %w", err)
	}
	d.log.Info("detected UBI region",
		"start", fmt.Sprintf("0x%08X", container.StartOffset),
		"end", fmt.Sprintf("0x%08X", container.EndOffset),
		"blocks", len(container.Blocks))

	vtr, err := container.VolumeByID(volumeID)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	volume := container.ReadVolume(vtr)

	img, err := deviceimage.Decode(volume)
	if err != nil {
		return fmt.Errorf("driver: decoding device image: %w", err)
	}

	args, err := bootargs.Decode(data)
	if err != nil {
		return fmt.Errorf("driver: decoding boot arguments: %w", err)
	}

	var position uint64
	switch target {
	case "fdt":
		position, err = args.FDTPosition()
	case "kernel":
		position, err = args.KernelPosition()
	case "ramdisk":
		position, err = args.RAMdiskPosition()
	default:
		err = fmt.Errorf("unknown write target %q", target)
	}
	if err != nil {
		return fmt.Errorf("driver: resolving %s position: %w", target, err)
	}

	updateData, err := os.ReadFile(updatePath)
	if err != nil {
		return fmt.Errorf("driver: reading update payload: %w", err)
	}

	if err := img.Put(updateData, int(position)); err != nil {
		return fmt.Errorf("driver: splicing %s: %w", target, err)
	}
	img.RefreshSHA1()
	d.log.Info("refreshed device image sha1", "sha1", fmt.Sprintf("0x%X", img.Header.ImageSHA1))

	spin := d.newSpinner("rewriting volume blocks")
	container.DeleteVolumeBlocks(volumeID)
	newImageSequence := nextImageSequence(container)
	err = container.PutVolumeBlocks(volumeID, img.Marshal(), newImageSequence)
	stopSpinner(spin)
	if err != nil {
		return fmt.Errorf("driver: installing rewritten volume: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("driver: creating output file: %w", err)
	}
	defer out.Close()

	if _, err := out.Write(data[:container.StartOffset]); err != nil {
		return fmt.Errorf("driver: writing leading bytes: %w", err)
	}
	if _, err := out.Write(container.Marshal()); err != nil {
		return fmt.Errorf("driver: writing rewritten UBI region: %w", err)
	}
	if _, err := out.Write(data[container.EndOffset:]); err != nil {
		return fmt.Errorf("driver: writing trailing bytes: %w", err)
	}

	d.log.Info("wrote output image", "path", outputPath)
	return nil
}

func nextImageSequence(c *ubi.Container) uint32 {
	var max uint32
	for _, p := range c.Blocks {
		if p.ECH != nil && p.ECH.ImageSequence > max {
			max = p.ECH.ImageSequence
		}
	}
	return max + 1
}
