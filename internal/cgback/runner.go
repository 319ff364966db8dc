// Package cgback wraps invocation of the external cgback executable, which
// rebuilds an all-atom structure from a coarse-grained C-alpha model.
package cgback

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner invokes cgback once per structure file. The device selector is
// carried here and passed on the command line of every invocation, so a
// worker never depends on inherited process environment for device choice.
type Runner struct {
	Bin              string // executable name or path, normally "cgback"
	Device           string // device selector, e.g. "cuda:0" or "cpu"
	VisibleDevices   string // CUDA_VISIBLE_DEVICES value, empty to inherit
	MaxFixIterations int    // --fix-structure-max-iterations value
}

func NewRunner(bin, device, visible string, maxFixIterations int) *Runner {
	return &Runner{
		Bin:              bin,
		Device:           device,
		VisibleDevices:   visible,
		MaxFixIterations: maxFixIterations,
	}
}

// Args returns the argument vector for one reconstruction, excluding the
// executable itself. Arguments are kept as a list; nothing goes through a
// shell.
func (r *Runner) Args(inputPDB, outputPDB string) []string {
	return []string{
		inputPDB,
		"-o", outputPDB,
		"-d", r.Device,
		"--fix-structure-max-iterations", strconv.Itoa(r.MaxFixIterations),
	}
}

// Rebuild runs cgback on inputPDB, writing the all-atom model to outputPDB.
// The subprocess blocks until cgback exits. A non-zero exit status is an
// error carrying the tail of the captured stderr.
func (r *Runner) Rebuild(ctx context.Context, inputPDB, outputPDB string) error {
	cmd := exec.CommandContext(ctx, r.Bin, r.Args(inputPDB, outputPDB)...)
	if r.VisibleDevices != "" {
		cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES="+r.VisibleDevices)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cgback %s failed: %w: %s", inputPDB, err, tail(stderr.String(), 512))
	}
	return nil
}

// tail returns at most n trailing bytes of s, trimmed of whitespace.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
