package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	yamlIndentConstant                = 2
	jsonIndentConstant                = "  "
	unsupportedFormatTemplateConstant = "unsupported bundle format %q"
)

// Format selects the bundle encoding.
type Format string

// Bundle encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension; anything but .json is YAML.
func FormatForPath(filePath string) Format {
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ContentType returns the MIME type of the format.
func (format Format) ContentType() string {
	if format == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// EncodeBundle writes bundle in the requested format.
func EncodeBundle(writer io.Writer, bundle Bundle, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(bundle)
	case FormatYAML, "":
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(bundle); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	default:
		return fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
}
