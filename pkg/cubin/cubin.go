// Package cubin extracts the machine code of GPU functions from cubin
// (ELF) files and decodes it.
package cubin

import (
	"context"
	"debug/elf"
	"io"
	"strings"

	"github.com/hashicorp/golang-lru"
	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gpu-uarch/nvdis/pkg/elfwriter"
	"github.com/gpu-uarch/nvdis/pkg/logflags"
	"github.com/gpu-uarch/nvdis/pkg/sass"
)

const (
	textPrefix = ".text."

	// osabiCUDA and abiVersion are the identification bytes nvcc writes.
	osabiCUDA  = elf.OSABI(0x33)
	abiVersion = 7
	// sm75Flags selects the sm_75 target, both as real and virtual
	// architecture.
	sm75Flags = 75 | 75<<16
	textAlign = 128
)

// Function is the code of one kernel or device function.
type Function struct {
	// Symbol is the name as stored in the section table.
	Symbol string
	// Name is Symbol demangled.
	Name string
	Data []byte
}

// File is an opened cubin.
type File struct {
	Path      string
	Functions []*Function

	closer io.Closer
	cache  *lru.Cache
	log    *logrus.Entry
}

// Open opens the cubin at path. Up to cacheSize decoded functions are kept
// in memory.
func Open(path string, cacheSize int) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	f, err := newFile(path, ef, cacheSize)
	if err != nil {
		ef.Close()
		return nil, err
	}
	f.closer = ef
	return f, nil
}

// NewFile reads a cubin from r.
func NewFile(r io.ReaderAt, cacheSize int) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read ELF file")
	}
	return newFile("", ef, cacheSize)
}

func newFile(path string, ef *elf.File, cacheSize int) (*File, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create function cache")
	}
	f := &File{
		Path:  path,
		cache: cache,
		log:   logflags.CubinLogger().WithField("file", path),
	}
	if ef.Machine != elf.EM_CUDA {
		f.log.Warnf("machine is %v, not %v", ef.Machine, elf.EM_CUDA)
	}
	for _, section := range ef.Sections {
		if !strings.HasPrefix(section.Name, textPrefix) {
			continue
		}
		data, err := section.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "could not read section %s", section.Name)
		}
		symbol := section.Name[len(textPrefix):]
		fn := &Function{
			Symbol: symbol,
			Name:   demangle.Filter(symbol),
			Data:   data,
		}
		f.log.Debugf("found function %s (%d bytes)", fn.Name, len(data))
		f.Functions = append(f.Functions, fn)
	}
	return f, nil
}

// Close closes the underlying file, if any.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Lookup finds a function by symbol or by demangled name.
func (f *File) Lookup(name string) (*Function, bool) {
	for _, fn := range f.Functions {
		if fn.Symbol == name || fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Disassemble decodes fn. Results are cached by symbol.
func (f *File) Disassemble(fn *Function) ([]sass.Result, error) {
	if v, ok := f.cache.Get(fn.Symbol); ok {
		return v.([]sass.Result), nil
	}
	rs, err := sass.Disassemble(fn.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "function %s", fn.Name)
	}
	unknown := 0
	for _, r := range rs {
		if err := r.Err(); err != nil {
			unknown++
			f.log.WithError(err).Debugf("%s+%#x: unknown instruction", fn.Name, r.Offset())
		}
	}
	f.log.Debugf("decoded %s: %d instructions, %d unknown", fn.Name, len(rs), unknown)
	f.cache.Add(fn.Symbol, rs)
	return rs, nil
}

// DisassembleAll decodes fns concurrently. The i-th result belongs to
// fns[i].
func (f *File) DisassembleAll(ctx context.Context, fns []*Function) ([][]sass.Result, error) {
	r := make([][]sass.Result, len(fns))
	g, ctx := errgroup.WithContext(ctx)
	for i := range fns {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rs, err := f.Disassemble(fns[i])
			if err != nil {
				return err
			}
			r[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// Write writes a cubin holding the code of fns. Only code sections are
// written, which is enough for Open to read the file back.
func Write(w io.WriteSeeker, fns []*Function) error {
	ew := elfwriter.New(w, &elf.FileHeader{
		Class:      elf.ELFCLASS64,
		Data:       elf.ELFDATA2LSB,
		Version:    elf.EV_CURRENT,
		OSABI:      osabiCUDA,
		ABIVersion: abiVersion,
		Type:       elf.ET_EXEC,
		Machine:    elf.EM_CUDA,
	}, sm75Flags)
	for _, fn := range fns {
		ew.WriteSection(elf.SectionHeader{
			Name:      textPrefix + fn.Symbol,
			Type:      elf.SHT_PROGBITS,
			Flags:     elf.SHF_ALLOC | elf.SHF_EXECINSTR,
			Addralign: textAlign,
		}, fn.Data)
	}
	ew.WriteSectionHeaders()
	return errors.Wrap(ew.Err, "could not write cubin")
}
