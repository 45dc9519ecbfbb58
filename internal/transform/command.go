package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// PathPlaceholder in a command argument is replaced by the source path.
const PathPlaceholder = "{path}"

// Command runs an external program such as lessc or pug. The source is
// written to its stdin and its stdout becomes the result. The program runs
// in the source file's directory so its own relative includes resolve.
type Command struct {
	Name string
	Args []string
	// Ext is the extension of the produced output. Empty keeps the source
	// extension.
	Ext string
}

func (c *Command) Transform(ctx context.Context, absPath string, src []byte) (Result, error) {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, PathPlaceholder, absPath)
	}

	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.Dir = filepath.Dir(absPath)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("%s %s: %w: %s", c.Name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return Result{Ext: c.Ext, Data: stdout.Bytes()}, nil
}
