package engine

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner invokes an engine binary. The default runner shells out; tests
// substitute a fake so no engine is required.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) (stdout, stderr string, err error)
}

type cliRunner struct{}

func (cliRunner) Run(ctx context.Context, bin string, args ...string) (string, string, error) {
	var out, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}
