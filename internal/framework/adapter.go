// Package framework detects how to start and health-check a project's
// dev server. Frameworks are described by a closed capability interface;
// detection walks an explicit ordered list of registered adapters and
// returns the first match.
package framework

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
)

// Adapter describes how to run one framework's dev server.
type Adapter interface {
	// Name identifies the framework (vite, next, ...).
	Name() string
	// Detect returns true if the directory looks like this framework.
	Detect(dir string) bool
	// StartCommand is the command that launches the dev server.
	StartCommand() []string
	// PortArgs are extra CLI arguments that inject the port.
	PortArgs(port int) []string
	// EnvVars are KEY=VALUE pairs injected into the server environment,
	// forcing loopback-only binding.
	EnvVars(port int) []string
	// ReadyPattern matches a stdout line that signals readiness.
	ReadyPattern() *regexp.Regexp
	// HealthCheckURL is the URL probed while waiting for readiness.
	HealthCheckURL(port int) string
	// ValidateHealth decides whether a probe response means ready.
	ValidateHealth(resp *http.Response) bool
}

// packageJSON is the subset of package.json the detectors inspect.
type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// readPackageJSON parses dir/package.json. Returns nil if absent or
// malformed.
func readPackageJSON(dir string) *packageJSON {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return &pkg
}

// hasDependency returns true if the package depends on name, in either
// dependencies or devDependencies.
func (p *packageJSON) hasDependency(name string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.Dependencies[name]; ok {
		return true
	}
	_, ok := p.DevDependencies[name]
	return ok
}

// anyFileExists returns true if any of the names exists in dir.
func anyFileExists(dir string, names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// loopbackURL builds the health-check URL for a port and path.
func loopbackURL(port int, path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
}

// viteAdapter runs Vite projects.
type viteAdapter struct{}

func (viteAdapter) Name() string { return "vite" }

func (viteAdapter) Detect(dir string) bool {
	if anyFileExists(dir, "vite.config.js", "vite.config.ts", "vite.config.mjs", "vite.config.mts") {
		return true
	}
	return readPackageJSON(dir).hasDependency("vite")
}

func (viteAdapter) StartCommand() []string { return []string{"npm", "run", "dev"} }

func (viteAdapter) PortArgs(port int) []string {
	return []string{"--", "--port", fmt.Sprintf("%d", port), "--host", "127.0.0.1", "--strictPort"}
}

func (viteAdapter) EnvVars(port int) []string {
	return []string{fmt.Sprintf("PORT=%d", port), "HOST=127.0.0.1"}
}

var viteReady = regexp.MustCompile(`Local:\s+https?://`)

func (viteAdapter) ReadyPattern() *regexp.Regexp { return viteReady }

func (viteAdapter) HealthCheckURL(port int) string { return loopbackURL(port, "/") }

func (viteAdapter) ValidateHealth(resp *http.Response) bool { return resp != nil }

// nextAdapter runs Next.js projects.
type nextAdapter struct{}

func (nextAdapter) Name() string { return "next" }

func (nextAdapter) Detect(dir string) bool {
	if anyFileExists(dir, "next.config.js", "next.config.mjs", "next.config.ts") {
		return true
	}
	return readPackageJSON(dir).hasDependency("next")
}

func (nextAdapter) StartCommand() []string { return []string{"npm", "run", "dev"} }

func (nextAdapter) PortArgs(port int) []string {
	return []string{"--", "--port", fmt.Sprintf("%d", port), "--hostname", "127.0.0.1"}
}

func (nextAdapter) EnvVars(port int) []string {
	return []string{fmt.Sprintf("PORT=%d", port), "HOSTNAME=127.0.0.1"}
}

var nextReady = regexp.MustCompile(`(?i)ready in|started server on`)

func (nextAdapter) ReadyPattern() *regexp.Regexp { return nextReady }

func (nextAdapter) HealthCheckURL(port int) string { return loopbackURL(port, "/") }

func (nextAdapter) ValidateHealth(resp *http.Response) bool {
	return resp != nil && resp.StatusCode < 500
}

// npmDevAdapter is the fallback for any package.json with a dev script.
// Any HTTP response on the assigned port counts as healthy.
type npmDevAdapter struct{}

func (npmDevAdapter) Name() string { return "npm-dev" }

func (npmDevAdapter) Detect(dir string) bool {
	pkg := readPackageJSON(dir)
	if pkg == nil {
		return false
	}
	_, ok := pkg.Scripts["dev"]
	return ok
}

func (npmDevAdapter) StartCommand() []string { return []string{"npm", "run", "dev"} }

func (npmDevAdapter) PortArgs(port int) []string {
	return []string{"--", "--port", fmt.Sprintf("%d", port)}
}

func (npmDevAdapter) EnvVars(port int) []string {
	return []string{fmt.Sprintf("PORT=%d", port), "HOST=127.0.0.1"}
}

var genericReady = regexp.MustCompile(`https?://(localhost|127\.0\.0\.1):\d+`)

func (npmDevAdapter) ReadyPattern() *regexp.Regexp { return genericReady }

func (npmDevAdapter) HealthCheckURL(port int) string { return loopbackURL(port, "/") }

func (npmDevAdapter) ValidateHealth(resp *http.Response) bool { return resp != nil }

// Compile-time interface checks.
var (
	_ Adapter = viteAdapter{}
	_ Adapter = nextAdapter{}
	_ Adapter = npmDevAdapter{}
)
