// Package toolcheck answers whether a tool's executable is on PATH.
// Results are advisory; adapters re-check before running.
package toolcheck

import (
	"os/exec"
	"strings"
	"sync"
)

// Candidates is implemented by anything that can name the executables that
// satisfy a tool, in priority order.
type Candidates interface {
	CandidateNames() []string
}

// Checker caches PATH lookups per name until Reset is called.
type Checker struct {
	mu       sync.Mutex
	cache    map[string]string
	lookPath func(string) (string, error)
}

// New returns a Checker backed by exec.LookPath.
func New() *Checker {
	return NewWithLookPath(exec.LookPath)
}

// NewWithLookPath returns a Checker using a custom lookup function.
func NewWithLookPath(fn func(string) (string, error)) *Checker {
	return &Checker{cache: make(map[string]string), lookPath: fn}
}

// Installed reports whether name resolves on PATH.
func (c *Checker) Installed(name string) bool {
	_, ok := c.Path(name)
	return ok
}

// Path returns the resolved path for name.
func (c *Checker) Path(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	c.mu.Lock()
	if p, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return p, p != ""
	}
	c.mu.Unlock()

	p, err := c.lookPath(name)
	if err != nil {
		p = ""
	}

	c.mu.Lock()
	c.cache[name] = p
	c.mu.Unlock()
	return p, p != ""
}

// Resolve returns the first candidate name that is installed.
func (c *Checker) Resolve(tool Candidates) (string, bool) {
	for _, name := range tool.CandidateNames() {
		if c.Installed(name) {
			return name, true
		}
	}
	return "", false
}

// Available reports whether any candidate of tool is installed.
func (c *Checker) Available(tool Candidates) bool {
	_, ok := c.Resolve(tool)
	return ok
}

// Reset drops cached lookups, starting a new check pass.
func (c *Checker) Reset() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}
