package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteRegisters writes one register value per line, in decimal, $z first.
func WriteRegisters(w io.Writer, regs []uint32) error {
	bw := bufio.NewWriter(w)
	for _, v := range regs {
		if _, err := fmt.Fprintln(bw, v); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteMemory writes one byte value per line, in decimal, address 0 first.
func WriteMemory(w io.Writer, data []byte) error {
	bw := bufio.NewWriter(w)
	for _, b := range data {
		if _, err := fmt.Fprintln(bw, b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DumpToFile creates path and fills it using write.
func DumpToFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close dump file: %w", cerr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FormatMemory renders data as a hex listing with 16 bytes per line,
// labelling each line with its address starting at base.
func FormatMemory(w io.Writer, base uint32, data []byte) error {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		if _, err := fmt.Fprintf(w, "%08X: % X\n", base+uint32(off), data[off:end]); err != nil {
			return err
		}
	}
	return nil
}
