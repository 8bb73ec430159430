package image

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"iljit/internal/metadata"
)

// Format is an on-disk encoding of an Image.
type Format uint8

const (
	FormatYAML Format = iota + 1
	FormatMsgpack
	FormatCBOR
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("format(%d)", f)
	}
}

// FormatOf picks the encoding from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".mp", ".msgpack":
		return FormatMsgpack, nil
	case ".cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%s: unknown image extension (want .yaml, .yml, .mp or .cbor)", path)
	}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: cbor enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes img. CBOR output is canonical, so equal images encode to
// equal bytes.
func Marshal(img *Image, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(img); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatMsgpack:
		return msgpack.Marshal(img)
	case FormatCBOR:
		return cborEncMode.Marshal(img)
	default:
		return nil, fmt.Errorf("cannot encode %s", f)
	}
}

// Unmarshal decodes an image. YAML input rejects unknown keys.
func Unmarshal(data []byte, f Format) (*Image, error) {
	img := new(Image)
	var err error
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(img)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, img)
	case FormatCBOR:
		err = cbor.Unmarshal(data, img)
	default:
		err = fmt.Errorf("cannot decode %s", f)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Read loads an image file and returns it together with its raw bytes.
func Read(path string) (*Image, []byte, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, err := Unmarshal(data, f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, data, nil
}

// Load reads an image and builds it. refs supplies the modules it imports.
func Load(path string, refs map[string]*metadata.Module) (*metadata.Module, error) {
	img, _, err := Read(path)
	if err != nil {
		return nil, err
	}
	return Build(img, refs)
}

// Save encodes img in the format implied by path and writes it atomically.
func Save(path string, img *Image) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(img, f)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".image-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
