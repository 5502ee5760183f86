package bgf

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/matzehuels/bgf/pkg/errors"
)

// readBufferSize is the bufio size used for file sources during pass 1 and
// the sequential pass 2.
const readBufferSize = 256 << 10

// Result is a decoded container.
type Result struct {
	Catalog *Catalog
	Records []*Record
}

// Decode reads a whole container from r: pass 1 to completion, then pass 2.
// size is the number of bytes r holds, or -1 if unknown. When r is also an
// io.ReaderAt and opts.Workers > 1, pass 2 decodes graphs concurrently.
func Decode(ctx context.Context, r io.Reader, size int64, opts Options) (*Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	ra, seekable := r.(io.ReaderAt)
	parallel := seekable && opts.Workers > 1

	src := r
	if _, inMemory := r.(lener); !inMemory {
		src = bufio.NewReaderSize(r, readBufferSize)
	}
	c, err := NewCursor(src, opts.ByteOrder, opts.PointerWidth)
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		c.Limit(size)
	}

	cat, err := ReadCatalog(c)
	if err != nil {
		return nil, err
	}

	var records []*Record
	if parallel {
		records, err = MaterializeAt(ctx, ra, size, cat, opts)
		if err == nil {
			err = checkTrailerAt(ra, cat, size, opts.PointerWidth)
		}
	} else {
		records, err = Materialize(c, cat)
		if err == nil {
			err = checkTrailer(c)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Result{Catalog: cat, Records: records}, nil
}

// checkTrailer fails if bytes remain after the last payload. A container
// that decodes cleanly but leaves data behind was read with the wrong
// pointer width.
func checkTrailer(c *Cursor) error {
	if left := c.Remaining(); left > 0 {
		return trailerError(c.Offset(), left)
	}
	if c.Remaining() < 0 {
		var one [1]byte
		if n, _ := io.ReadFull(c.r, one[:]); n > 0 {
			return trailerError(c.Offset(), 1)
		}
	}
	return nil
}

func checkTrailerAt(r io.ReaderAt, cat *Catalog, size int64, width int) error {
	offs, err := cat.PayloadOffsets(width)
	if err != nil {
		return err
	}
	end := offs[len(offs)-1]
	if size >= 0 {
		if size > end {
			return trailerError(end, size-end)
		}
		return nil
	}
	var one [1]byte
	if n, _ := r.ReadAt(one[:], end); n > 0 {
		return trailerError(end, 1)
	}
	return nil
}

func trailerError(off, n int64) error {
	return errors.New(errors.ErrCodeCorruptContainer,
		"%d unread bytes after the last graph; check byte order / pointer width", n).AtOffset(off)
}

// DecodeBytes decodes an in-memory container.
func DecodeBytes(data []byte, opts Options) (*Result, error) {
	opts.Workers = 1
	return Decode(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
}

// DecodeFile decodes the container at path.
func DecodeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeSourceNotFound, err, "BGF source %s does not exist", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Decode(ctx, f, info.Size(), opts)
}

// ReadHeaders runs pass 1 only.
func ReadHeaders(r io.Reader, size int64, opts Options) (*Catalog, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	c, err := NewCursor(bufio.NewReaderSize(r, readBufferSize), opts.ByteOrder, opts.PointerWidth)
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		c.Limit(size)
	}
	return ReadCatalog(c)
}
