package reader

import (
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"localkb/internal/domain"
)

// decoders are tried in order; the first clean decode wins.
var decoders = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"shift-jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
	{"iso-2022-jp", japanese.ISO2022JP},
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "cannot read "+path, err)
	}

	tried := make([]string, 0, len(decoders))
	for _, d := range decoders {
		tried = append(tried, d.name)

		if d.enc == unicode.UTF8 {
			if utf8.Valid(data) {
				return string(data), nil
			}
			continue
		}

		out, err := d.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		// The decoders substitute U+FFFD for undecodable bytes instead of
		// erroring; treat any replacement as a failed decode.
		if strings.ContainsRune(string(out), utf8.RuneError) {
			continue
		}
		return string(out), nil
	}

	return "", domain.NewError(domain.CodeEncodingError,
		"text file could not be decoded with any supported encoding",
		map[string]any{"path": path, "tried": tried})
}
