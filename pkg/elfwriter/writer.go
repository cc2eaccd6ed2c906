// elfwriter is a package to write ELF files without having their entire
// contents in memory at any one time.
// This package is incomplete, only features needed to write cubins are
// implemented, notably missing:
// - program headers
// - symbol tables and relocations

package elfwriter

import (
	"debug/elf"
	"encoding/binary"
	"io"
)

const (
	ehsize    = 64
	shentsize = 64

	offShoff     = 0x28
	offShnum     = 0x3c
	offShstrndx  = 0x3e
	shstrtabName = ".shstrtab"
)

// Writer writes ELF files.
type Writer struct {
	w        io.WriteSeeker
	Err      error
	Sections []*elf.SectionHeader
}

// New creates a new Writer. Only 64-bit little-endian files are supported.
func New(w io.WriteSeeker, fhdr *elf.FileHeader, flags uint32) *Writer {
	if seek, _ := w.Seek(0, io.SeekCurrent); seek != 0 {
		panic("can't write halfway through a file")
	}

	r := &Writer{w: w}

	if fhdr.Class != elf.ELFCLASS64 {
		panic("unsupported")
	}

	if fhdr.Data != elf.ELFDATA2LSB {
		panic("unsupported")
	}

	// e_ident
	r.Write([]byte{0x7f, 'E', 'L', 'F', byte(fhdr.Class), byte(fhdr.Data), byte(fhdr.Version), byte(fhdr.OSABI), byte(fhdr.ABIVersion), 0, 0, 0, 0, 0, 0, 0})

	r.u16(uint16(fhdr.Type))     // e_type
	r.u16(uint16(fhdr.Machine))  // e_machine
	r.u32(uint32(fhdr.Version))  // e_version
	r.u64(fhdr.Entry)            // e_entry
	r.u64(0)                     // e_phoff
	r.u64(0)                     // e_shoff
	r.u32(flags)                 // e_flags
	r.u16(ehsize)                // e_ehsize
	r.u16(0)                     // e_phentsize
	r.u16(0)                     // e_phnum
	r.u16(shentsize)             // e_shentsize
	r.u16(0)                     // e_shnum
	r.u16(uint16(elf.SHN_UNDEF)) // e_shstrndx

	// Sanity check, size of file header should be the same as ehsize
	if sz, _ := w.Seek(0, io.SeekCurrent); sz != ehsize {
		panic("internal error, ELF header size")
	}

	// Index 0 is the reserved null section.
	r.Sections = append(r.Sections, &elf.SectionHeader{Type: elf.SHT_NULL})

	return r
}

// WriteSection writes data at the current location, aligned to
// hdr.Addralign, and records hdr as describing it.
func (w *Writer) WriteSection(hdr elf.SectionHeader, data []byte) {
	if hdr.Addralign > 1 {
		w.Align(int64(hdr.Addralign))
	}
	hdr.Offset = uint64(w.Here())
	hdr.Size = uint64(len(data))
	hdr.FileSize = hdr.Size
	w.Write(data)
	w.Sections = append(w.Sections, &hdr)
}

// WriteSectionHeaders writes the section name table and the section
// headers at the current location and patches the file header
// accordingly. No section can be written afterwards.
func (w *Writer) WriteSectionHeaders() {
	names := []byte{0}
	nameOff := make([]uint32, 0, len(w.Sections)+1)
	for _, s := range w.Sections {
		if s.Name == "" {
			nameOff = append(nameOff, 0)
			continue
		}
		nameOff = append(nameOff, uint32(len(names)))
		names = append(names, s.Name...)
		names = append(names, 0)
	}
	nameOff = append(nameOff, uint32(len(names)))
	names = append(names, shstrtabName...)
	names = append(names, 0)

	shstrndx := len(w.Sections)
	w.WriteSection(elf.SectionHeader{Name: shstrtabName, Type: elf.SHT_STRTAB, Addralign: 1}, names)

	w.Align(8)
	shoff := w.Here()

	// Patch File Header
	w.w.Seek(offShoff, io.SeekStart)
	w.u64(uint64(shoff))
	w.w.Seek(offShnum, io.SeekStart)
	w.u16(uint16(len(w.Sections)))
	w.w.Seek(offShstrndx, io.SeekStart)
	w.u16(uint16(shstrndx))
	w.w.Seek(0, io.SeekEnd)

	for i, s := range w.Sections {
		w.u32(nameOff[i])
		w.u32(uint32(s.Type))
		w.u64(uint64(s.Flags))
		w.u64(s.Addr)
		w.u64(s.Offset)
		w.u64(s.Size)
		w.u32(s.Link)
		w.u32(s.Info)
		w.u64(s.Addralign)
		w.u64(s.Entsize)
	}
}

// Here returns the current seek offset from the start of the file.
func (w *Writer) Here() int64 {
	r, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil && w.Err == nil {
		w.Err = err
	}
	return r
}

// Align writes as many padding bytes as needed to make the current file
// offset a multiple of align.
func (w *Writer) Align(align int64) {
	off := w.Here()
	alignOff := (off + (align - 1)) &^ (align - 1)
	if alignOff-off > 0 {
		w.Write(make([]byte, alignOff-off))
	}
}

func (w *Writer) Write(buf []byte) {
	_, err := w.w.Write(buf)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u16(n uint16) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u32(n uint32) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u64(n uint64) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}
