//go:build !linux

package procsnap

import (
	"context"
	"os"
	"os/exec"
)

// DefaultLister shells out to ps
func DefaultLister() Lister {
	return psLister{}
}

type psLister struct{}

func (psLister) List(ctx context.Context) ([]RawProcess, error) {
	cmd := exec.CommandContext(ctx, "ps", "-axo", psColumns)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parsePsOutput(string(out)), nil
}
