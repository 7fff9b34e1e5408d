package source

import (
	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

// ParseResult holds the outcome of parsing a single scenario file.
type ParseResult struct {
	File     DiscoveredFile
	Scenario Scenario
	// Undecoded lists keys present in the file that no record field uses.
	Undecoded []string
	Err       error
}

// ParseFile decodes one scenario file.
func ParseFile(df DiscoveredFile) ParseResult {
	result := ParseResult{File: df}

	md, err := toml.DecodeFile(df.Path, &result.Scenario)
	if err != nil {
		result.Err = errors.Wrapf(err, "parse %s", df.Name)
		return result
	}
	for _, key := range md.Undecoded() {
		result.Undecoded = append(result.Undecoded, key.String())
	}
	return result
}
