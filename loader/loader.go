// Package loader reads the three JSON documents of a specification release
// from a tarball, a directory or individual files.
package loader

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/armspecgen/spec"
)

// Default document names inside a release.
const (
	DefaultInstructions = "Instructions.json"
	DefaultFeatures     = "Features.json"
	DefaultRegisters    = "Registers.json"
)

// ErrMissingDocument is returned when a tarball lacks one of the documents.
var ErrMissingDocument = errors.New("missing document")

// Paths names the three documents.
type Paths struct {
	Instructions string
	Features     string
	Registers    string
}

// DefaultPaths returns the document names used by the releases.
func DefaultPaths() Paths {
	return Paths{
		Instructions: DefaultInstructions,
		Features:     DefaultFeatures,
		Registers:    DefaultRegisters,
	}
}

// Join prefixes the relative paths with dir.
func (p Paths) Join(dir string) Paths {
	join := func(name string) string {
		if dir == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}
	return Paths{
		Instructions: join(p.Instructions),
		Features:     join(p.Features),
		Registers:    join(p.Registers),
	}
}

func (p Paths) list() [3]string {
	return [3]string{p.Instructions, p.Features, p.Registers}
}

// Option configures a load.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
}

// WithLogger sets the logger for progress messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.log = discard
	}
	return o
}

// FromFiles reads and decodes the three documents in parallel.
func FromFiles(ctx context.Context, paths Paths, opts ...Option) (*spec.Documents, error) {
	o := newOptions(opts)
	start := time.Now()

	var raw [3]any
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range paths.list() {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(name)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", name, err)
			}
			defer func() { _ = f.Close() }()

			if raw[i], err = decode(bufio.NewReader(f)); err != nil {
				return fmt.Errorf("failed to decode %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs, err := documents(raw, paths)
	if err != nil {
		return nil, err
	}
	o.log.WithField("elapsed", time.Since(start)).Info("loaded specification files")
	return docs, nil
}

// FromDir reads the documents from dir. Relative names in paths are taken
// relative to dir.
func FromDir(ctx context.Context, dir string, paths Paths, opts ...Option) (*spec.Documents, error) {
	return FromFiles(ctx, paths.Join(dir), opts...)
}

// FromTar reads the documents from a tarball, which may be gzip compressed.
// Members match by full name or by base name.
func FromTar(ctx context.Context, file string, paths Paths, opts ...Option) (*spec.Documents, error) {
	o := newOptions(opts)
	start := time.Now()

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	contents, err := readMembers(ctx, f, paths.list())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	var raw [3]any
	g, ctx := errgroup.WithContext(ctx)
	for i, data := range contents {
		i, data := i, data
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", paths.list()[i], err)
			}
			raw[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs, err := documents(raw, paths)
	if err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"tar":     file,
		"elapsed": time.Since(start),
	}).Info("loaded specification tarball")
	return docs, nil
}

// readMembers returns the contents of the named tar members, in the order
// of names.
func readMembers(ctx context.Context, r io.Reader, names [3]string) ([3][]byte, error) {
	var out [3][]byte

	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return out, err
		}
		defer func() { _ = zr.Close() }()
		r = zr
	} else {
		r = br
	}

	found := 0
	tr := tar.NewReader(r)
	for found < len(names) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		for i, name := range names {
			if out[i] != nil || (hdr.Name != name && path.Base(hdr.Name) != name) {
				continue
			}
			if out[i], err = io.ReadAll(tr); err != nil {
				return out, fmt.Errorf("member %s: %w", hdr.Name, err)
			}
			found++
			break
		}
	}

	for i, name := range names {
		if out[i] == nil {
			return out, fmt.Errorf("%w: %s", ErrMissingDocument, name)
		}
	}
	return out, nil
}

func decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func documents(raw [3]any, paths Paths) (*spec.Documents, error) {
	instructions, ok := raw[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a JSON object", paths.Instructions)
	}
	features, ok := raw[1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a JSON object", paths.Features)
	}
	registers, ok := raw[2].([]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a JSON list", paths.Registers)
	}
	return &spec.Documents{
		Instructions: instructions,
		Features:     features,
		Registers:    registers,
	}, nil
}
