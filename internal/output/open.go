package output

import (
	"os/exec"
	"runtime"

	"github.com/sells-group/auto-oracle/internal/model"
)

// viewerCommand returns the command that opens path with the platform's
// default application.
func viewerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

// Open launches the default viewer for path without waiting for it to exit.
func Open(path string) error {
	name, args := viewerCommand(runtime.GOOS, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return model.WrapError(err, model.KindIO, "output: open "+path)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}
