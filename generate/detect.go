package generate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// headerSize is enough for archive sniffing and BOM detection.
const headerSize = 512

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks for byte order mark. UTF-32 LE must be checked before
// UTF-16 LE, they share first two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	default:
		return encUnknown
	}
}

// selectReader returns reader producing UTF-8. BOM (if any) is consumed,
// BOM-less input is decoded with fallback when it is not nil.
func selectReader(r io.Reader, enc srcEncoding, fallback encoding.Encoding) io.Reader {
	switch enc {
	case encUnknown:
		if fallback == nil {
			return r
		}
		return transform.NewReader(r, fallback.NewDecoder())
	case encUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	case encUTF16BigEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF16LittleEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF32BigEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder())
	case encUTF32LittleEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder())
	default:
		// this should never happen
		panic(fmt.Sprintf("unexpected source encoding %d", enc))
	}
}

func readHeader(r io.Reader) ([]byte, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func readFileHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readHeader(f)
}

// isArchiveFile requires both .zip extension and zip signature.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}
	header, err := readFileHeader(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(header, "zip"), nil
}

func hasTemplateExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	return ext != "" && slices.ContainsFunc(exts, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

// classifyTemplate decides on template using content header. Text without
// BOM must not have NUL bytes, which binary formats practically always have.
// Magic numbers are not used here: some of them are short enough to start
// ordinary text ("BM", "MZ", "ID3"). Invalid UTF-8 is allowed since
// templates may be in a legacy charset.
func classifyTemplate(header []byte) (bool, srcEncoding) {
	if enc := detectUTF(header); enc != encUnknown {
		return true, enc
	}
	return bytes.IndexByte(header, 0) < 0, encUnknown
}

// isTemplateFile checks extension first and then looks at file content.
func isTemplateFile(path string, exts []string) (bool, srcEncoding, error) {
	if !hasTemplateExt(path, exts) {
		return false, encUnknown, nil
	}
	header, err := readFileHeader(path)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := classifyTemplate(header)
	return ok, enc, nil
}

func isTemplateInArchive(f *zip.File, exts []string) (bool, srcEncoding, error) {
	if !hasTemplateExt(f.Name, exts) {
		return false, encUnknown, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	header, err := readHeader(r)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := classifyTemplate(header)
	return ok, enc, nil
}
