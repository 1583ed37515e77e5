package basemux

import (
	"io"
)

// BasePorter defines the minimal interface needed for a mobile-base
// transport link.
type BasePorter interface {
	io.ReadWriter
	io.Closer
}
