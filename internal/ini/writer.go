package ini

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// BackupSuffix is appended to the previous version of a saved file.
const BackupSuffix = ".bak"

// OverrideMode selects where Save places the file.
type OverrideMode int

const (
	// OverrideNone saves into the settings root.
	OverrideNone OverrideMode = iota
	// OverrideFile saves into the first override directory.
	OverrideFile
	// OverrideAppend saves the append variant into the first override
	// directory.
	OverrideAppend
)

// SaveOptions control the destination of Handle.Save.
type SaveOptions struct {
	// FileName defaults to the handle's file name.
	FileName string
	// Suffix is appended to the final file name.
	Suffix   string
	Override OverrideMode
}

// encodeTable renders a table in the settings file format. The default
// block is written first since it has no header.
func encodeTable(charset string, t *Table) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#?ini charset=\"%s\"?\n\n", charset)

	if b := t.Block(""); b.Len() > 0 {
		writeEntries(&buf, b)
		buf.WriteByte('\n')
	}
	first := true
	for _, name := range t.names {
		if name == "" {
			continue
		}
		if !first {
			buf.WriteByte('\n')
		}
		first = false
		fmt.Fprintf(&buf, "[%s]\n", name)
		writeEntries(&buf, t.blocks[name])
	}
	return buf.Bytes()
}

func writeEntries(buf *bytes.Buffer, b *Block) {
	for _, key := range b.keys {
		v := b.values[key]
		switch {
		case !v.array:
			fmt.Fprintf(buf, "%s=%s\n", key, v.scalar)
		case len(v.items) == 0:
			fmt.Fprintf(buf, "%s[]\n", key)
		default:
			for _, item := range v.items {
				fmt.Fprintf(buf, "%s[]=%s\n", key, item)
			}
		}
	}
}

// writeAtomic replaces dest with data, keeping the previous file as
// dest+BackupSuffix. dest is left untouched when data cannot be written.
func writeAtomic(dest string, data []byte) error {
	tmp, err := writeTemp(dest, data, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, dest, err)
	}

	backup := dest + BackupSuffix
	if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, dest, err)
	}
	hadOriginal := false
	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, backup); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, dest, err)
		}
		hadOriginal = true
	}
	if err := os.Rename(tmp, dest); err != nil {
		if hadOriginal {
			_ = os.Rename(backup, dest)
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, dest, err)
	}
	return nil
}

// replaceFile writes data to dest through a temporary file and a rename.
func replaceFile(dest string, data []byte, perm fs.FileMode) error {
	tmp, err := writeTemp(dest, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// writeTemp writes data to a new file next to dest and returns its path.
// Nothing is left behind on failure.
func writeTemp(dest string, data []byte, perm fs.FileMode) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", dest, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return "", err
	}
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// Pack writes the packed variant of the settings file at path, which
// takes precedence over the plain file on the next load.
func Pack(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreadableFile, path, err)
	}
	packed, err := compress(data)
	if err != nil {
		return err
	}
	if err := replaceFile(path+PackedSuffix, packed, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path+PackedSuffix, err)
	}
	return nil
}

// refreshPacked rewrites the packed variant of dest with data when one
// exists, keeping the previous one with BackupSuffix.
func refreshPacked(dest string, data []byte) error {
	packedPath := dest + PackedSuffix
	if _, err := os.Stat(packedPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	packed, err := compress(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, packedPath, err)
	}
	return writeAtomic(packedPath, packed)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	packed := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	return packed, nil
}
