//go:build !unix

package signals

import "os"

// ShutdownSignals returns the signals that stop the server. Only Interrupt
// exists off Unix.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
