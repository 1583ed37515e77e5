package basemux

import (
	"go.bug.st/serial"
)

// NewRealBaseMux creates a BaseMux instance backed by a real serial link to
// the mobile base at the given device path.
func NewRealBaseMux(path string) (*BaseMux[serial.Port], error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewBaseMux[serial.Port](port), nil
}
