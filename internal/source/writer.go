package source

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

// Encode writes sc in scenario file form. Empty record kinds are left out.
func Encode(w io.Writer, sc Scenario) error {
	if err := toml.NewEncoder(w).Encode(sc); err != nil {
		return errors.Wrap(err, "encode scenario")
	}
	return nil
}
