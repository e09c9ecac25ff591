package papercache

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// newLogger builds the structured logger every Cache writes its lifecycle
// events (construction, policy switches, wipes, shutdown) through. Output
// goes to stderr at info level by default so library consumers aren't
// forced into a particular logging backend, mirroring how a cache embedded
// in a larger service typically wants its own sink configured separately.
func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Str("component", "papercache").Logger()
}

// humanSize renders a byte count the way operator-facing log lines do
// throughout the stack this package borrows its ambient conventions from:
// "128 MB" rather than a bare integer.
func humanSize(n uint64) string {
	return humanize.Bytes(n)
}
