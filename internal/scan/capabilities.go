package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/buemura/reconcraft/internal/manifest"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/process"
)

var _ plugin.Capabilities = (*capabilities)(nil)

// capabilities bridges one job's adapter to the engine. Every command it
// runs is bound to the job's run directory, token and timeout.
type capabilities struct {
	s      *Scheduler
	jc     JobContext
	token  *process.Token
	stream func(string)

	mu       sync.Mutex
	command  []string
	exitCode int
	aborted  bool
}

func newCapabilities(s *Scheduler, jc JobContext, token *process.Token, stream func(string)) *capabilities {
	return &capabilities{s: s, jc: jc, token: token, stream: stream}
}

func (c *capabilities) RunCommand(ctx context.Context, argv []string, outFileName string, onLine func(string)) (plugin.CommandResult, error) {
	if len(argv) == 0 {
		return plugin.CommandResult{ExitCode: 1}, errors.New("empty command")
	}

	path := c.jc.Paths.RawLog
	if outFileName != "" {
		path = filepath.Join(c.jc.Paths.Dir, filepath.Base(outFileName))
	}
	if onLine == nil {
		onLine = c.stream
	}

	c.stream("🟢 Running: " + strings.Join(argv, " "))
	res := c.s.runner.Run(ctx, c.token, process.Command{
		Argv:       argv,
		OutputPath: path,
		Timeout:    c.jc.Timeout,
		OnLine:     onLine,
		Throttle:   c.s.throttle,
	})

	c.mu.Lock()
	c.command = append([]string(nil), argv...)
	c.exitCode = res.ExitCode
	if res.Aborted {
		c.aborted = true
	}
	c.mu.Unlock()

	if !res.Aborted {
		c.stream(fmt.Sprintf("✅ Finished: %s (Exit code: %d)", argv[0], res.ExitCode))
		if res.ExitCode != 0 {
			c.stream(fmt.Sprintf("⚠️ Warning: Tool exited with code %d", res.ExitCode))
		}
	}

	return plugin.CommandResult{
		Path:     path,
		ExitCode: res.ExitCode,
		Output:   res.Output(),
		Aborted:  res.Aborted,
		TimedOut: res.TimedOut,
		NotFound: res.NotFound,
	}, res.Err
}

func (c *capabilities) CheckInstalled(name string) bool {
	return c.s.checker.Installed(name)
}

func (c *capabilities) ExtractCVEs(path string) ([]string, error) {
	return manifest.ExtractCVEs(c.s.builder.Fs(), path)
}

// last returns the most recent command and its exit code.
func (c *capabilities) last() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command, c.exitCode
}

func (c *capabilities) wasAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}
