package container

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the plaintext split boundary when the caller
	// does not choose one.
	DefaultChunkSize = 1 << 20

	// MaxChunkSize bounds a single plaintext chunk: IV plus padded
	// ciphertext must stay within maxUnitSize, or the encoder would
	// emit containers its own decoder rejects.
	MaxChunkSize = maxUnitSize - 2*aes.BlockSize

	lenPrefixSize = 4

	// maxUnitSize bounds a single unit allocation; a length prefix
	// above this is treated as corrupt framing.
	maxUnitSize = 1 << 28
)

// Execution reports which path a codec operation ran on.
type Execution string

const (
	// ExecutionParallel means the worker pool processed all units.
	ExecutionParallel Execution = "parallel"
	// ExecutionSequential means the codec was configured for, or the
	// input only warranted, a single worker.
	ExecutionSequential Execution = "sequential"
	// ExecutionFallback means the parallel stage failed and the units
	// were reprocessed sequentially.
	ExecutionFallback Execution = "fallback"
)

// Report describes a completed encrypt or decrypt operation.
type Report struct {
	Execution Execution
	Chunks    int
	// Bytes is the plaintext byte count (input for encrypt, output for decrypt).
	Bytes int64
}

// Codec encrypts and decrypts chunked containers. The zero value is
// usable: 1 MiB chunks, one worker per CPU, a default logger and the
// system random source.
type Codec struct {
	// ChunkSize is the plaintext split boundary for Encrypt. Splits
	// above MaxChunkSize are rejected at encryption time.
	ChunkSize int

	// Workers caps the number of concurrent chunk operations.
	Workers int

	// Logger receives progress and fallback warnings.
	Logger *logrus.Logger

	// Rand supplies the salt and per-chunk IVs. Defaults to crypto/rand.
	Rand io.Reader
}

func (c *Codec) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}

	return c.ChunkSize
}

func (c *Codec) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}

	return c.Workers
}

func (c *Codec) logger() *logrus.Logger {
	if c.Logger == nil {
		return logrus.New()
	}

	return c.Logger
}

func (c *Codec) random() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}

	return c.Rand
}

// Encrypt reads all plaintext from r, splits it at the configured
// chunk boundary and writes the encrypted container to w.
func (c *Codec) Encrypt(ctx context.Context, r io.Reader, w io.Writer, password []byte) (*Report, error) {
	chunks, err := readChunks(r, c.chunkSize())
	if err != nil {
		return nil, err
	}

	return c.EncryptChunks(ctx, chunks, w, password)
}

// EncryptChunks encrypts a caller-chosen split of the plaintext.
// Chunk order in the container is exactly chunk order in the input;
// decrypting and concatenating reproduces the original byte stream.
func (c *Codec) EncryptChunks(ctx context.Context, chunks [][]byte, w io.Writer, password []byte) (*Report, error) {
	for i, chunk := range chunks {
		if len(chunk) > MaxChunkSize {
			return nil, &ChunkError{Index: i, Err: ErrChunkTooLarge}
		}
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(c.random(), salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	key, _, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	// IVs are drawn here, in index order, before any worker runs. The
	// key is the only other state shared across workers and is
	// read-only for the whole operation.
	ivs := make([][]byte, len(chunks))
	for i := range ivs {
		iv := make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(c.random(), iv); err != nil {
			return nil, fmt.Errorf("generating IV: %w", err)
		}

		ivs[i] = iv
	}

	units := make([][]byte, len(chunks))

	execution, err := c.runUnits(ctx, len(chunks), func(i int) error {
		unit, err := encryptChunkIV(chunks[i], key, ivs[i])
		if err != nil {
			return &ChunkError{Index: i, Err: err}
		}

		units[i] = unit

		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(salt); err != nil {
		return nil, fmt.Errorf("writing salt: %w", err)
	}

	var plainBytes int64

	var prefix [lenPrefixSize]byte

	for i, unit := range units {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(unit)))

		if _, err := w.Write(prefix[:]); err != nil {
			return nil, fmt.Errorf("writing length of chunk %d: %w", i, err)
		}

		if _, err := w.Write(unit); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}

		plainBytes += int64(len(chunks[i]))
	}

	report := &Report{Execution: execution, Chunks: len(chunks), Bytes: plainBytes}

	c.logger().WithFields(logrus.Fields{
		"chunks":    report.Chunks,
		"bytes":     report.Bytes,
		"execution": report.Execution,
	}).Debug("container encrypted")

	return report, nil
}

// Decrypt parses the container from r and writes the recovered
// plaintext to w. Unit failures are collected so the error reports
// every failing chunk, not just the first.
func (c *Codec) Decrypt(ctx context.Context, r io.Reader, w io.Writer, password []byte) (*Report, error) {
	reader := bufio.NewReader(r)

	salt := make([]byte, SaltSize)

	n, err := io.ReadFull(reader, salt)
	if err != nil {
		return nil, &TruncatedError{Offset: 0, Need: SaltSize, Have: n}
	}

	key, _, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	units, err := readUnits(reader)
	if err != nil {
		return nil, err
	}

	plains := make([][]byte, len(units))

	execution, err := c.runUnits(ctx, len(units), func(i int) error {
		plain, err := DecryptChunk(units[i], key)
		if err != nil {
			return &ChunkError{Index: i, Err: err}
		}

		plains[i] = plain

		return nil
	})
	if err != nil {
		return nil, err
	}

	var plainBytes int64

	for i, plain := range plains {
		if _, err := w.Write(plain); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}

		plainBytes += int64(len(plain))
	}

	report := &Report{Execution: execution, Chunks: len(units), Bytes: plainBytes}

	c.logger().WithFields(logrus.Fields{
		"chunks":    report.Chunks,
		"bytes":     report.Bytes,
		"execution": report.Execution,
	}).Debug("container decrypted")

	return report, nil
}

// runUnits executes fn for every unit index. With more than one worker
// and more than one unit the units run on an errgroup pool; a panic
// recovered from the pool triggers one sequential retry over the same
// units. Unit errors are collected per index and joined, so batch
// failures report every failing unit.
func (c *Codec) runUnits(ctx context.Context, n int, fn func(int) error) (Execution, error) {
	if c.workers() <= 1 || n <= 1 {
		return ExecutionSequential, runSequential(ctx, n, fn)
	}

	errs := make([]error, n)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.workers())

	for i := 0; i < n; i++ {
		i := i
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", errParallelStage, r)
				}
			}()

			if err := gctx.Err(); err != nil {
				return err
			}

			errs[i] = fn(i)

			return nil
		})
	}

	err := group.Wait()

	switch {
	case err == nil:
		if joined := errors.Join(errs...); joined != nil {
			return ExecutionParallel, joined
		}

		return ExecutionParallel, nil
	case errors.Is(err, errParallelStage):
		c.logger().WithError(err).Warn("parallel stage failed, retrying sequentially")

		clear(errs)

		return ExecutionFallback, runSequential(ctx, n, fn)
	default:
		return ExecutionParallel, err
	}
}

func runSequential(ctx context.Context, n int, fn func(int) error) error {
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		errs[i] = fn(i)
	}

	return errors.Join(errs...)
}

// readChunks splits r into slices of at most size bytes.
func readChunks(r io.Reader, size int) ([][]byte, error) {
	var chunks [][]byte

	for {
		buf := make([]byte, size)

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunks = append(chunks, buf[:n])
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return chunks, nil
		}

		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
	}
}

// readUnits reads length-prefixed units until the input is exhausted.
// A prefix claiming more bytes than remain yields a TruncatedError.
func readUnits(r io.Reader) ([][]byte, error) {
	var units [][]byte

	offset := int64(SaltSize)

	var prefix [lenPrefixSize]byte

	for {
		n, err := io.ReadFull(r, prefix[:])

		switch {
		case errors.Is(err, io.EOF):
			return units, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &TruncatedError{Offset: offset, Need: lenPrefixSize, Have: n}
		case err != nil:
			return nil, fmt.Errorf("reading unit length: %w", err)
		}

		size := binary.BigEndian.Uint32(prefix[:])
		if size > maxUnitSize {
			return nil, fmt.Errorf("unit of %d bytes at offset %d exceeds limit", size, offset)
		}

		unit := make([]byte, size)

		m, err := io.ReadFull(r, unit)
		if err != nil {
			return nil, &TruncatedError{Offset: offset + lenPrefixSize, Need: int(size), Have: m}
		}

		units = append(units, unit)
		offset += lenPrefixSize + int64(size)
	}
}
