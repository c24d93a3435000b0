package build

import (
	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
)

// ConfigureLogging installs an unbuffered stderr (or file) backend so that
// nothing is lost when the process exits with a status code.
// Verbosity follows commonlog: -1 warnings only, 0 notices, 1 info, 2 debug.
func ConfigureLogging(verbosity int, path *string) {
	backend := simple.NewBackend()
	backend.Buffered = false
	commonlog.SetBackend(backend)
	commonlog.Configure(verbosity, path)
}
