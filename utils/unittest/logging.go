package unittest

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print debugging logs")

// Logger discards everything unless the tests run with -vv.
func Logger() zerolog.Logger {
	writer := io.Discard
	if *verbose {
		writer = os.Stderr
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
