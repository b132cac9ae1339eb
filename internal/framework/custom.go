package framework

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// customFile is the on-disk shape of a user-defined adapters file.
type customFile struct {
	Adapters []customSpec `yaml:"adapters"`
}

// customSpec describes one user-defined framework adapter.
// "{port}" in port_args and env values is replaced with the assigned port.
type customSpec struct {
	Name         string            `yaml:"name"`
	DetectFiles  []string          `yaml:"detect_files"`
	DetectDeps   []string          `yaml:"detect_deps"`
	StartCommand []string          `yaml:"start_command"`
	PortArgs     []string          `yaml:"port_args"`
	Env          map[string]string `yaml:"env"`
	ReadyPattern string            `yaml:"ready_pattern"`
	HealthPath   string            `yaml:"health_path"`
}

// customAdapter implements Adapter from a YAML spec.
type customAdapter struct {
	spec  customSpec
	ready *regexp.Regexp
}

func (c *customAdapter) Name() string { return c.spec.Name }

func (c *customAdapter) Detect(dir string) bool {
	if anyFileExists(dir, c.spec.DetectFiles...) {
		return true
	}
	pkg := readPackageJSON(dir)
	for _, dep := range c.spec.DetectDeps {
		if pkg.hasDependency(dep) {
			return true
		}
	}
	return false
}

func (c *customAdapter) StartCommand() []string { return c.spec.StartCommand }

func (c *customAdapter) PortArgs(port int) []string {
	args := make([]string, len(c.spec.PortArgs))
	for i, arg := range c.spec.PortArgs {
		args[i] = strings.ReplaceAll(arg, "{port}", fmt.Sprintf("%d", port))
	}
	return args
}

func (c *customAdapter) EnvVars(port int) []string {
	var vars []string
	for k, v := range c.spec.Env {
		vars = append(vars, fmt.Sprintf("%s=%s", k, strings.ReplaceAll(v, "{port}", fmt.Sprintf("%d", port))))
	}
	return vars
}

func (c *customAdapter) ReadyPattern() *regexp.Regexp { return c.ready }

func (c *customAdapter) HealthCheckURL(port int) string {
	path := c.spec.HealthPath
	if path == "" {
		path = "/"
	}
	return loopbackURL(port, path)
}

func (c *customAdapter) ValidateHealth(resp *http.Response) bool { return resp != nil }

var _ Adapter = (*customAdapter)(nil)

// LoadCustomAdapters reads user-defined adapters from a YAML file and
// registers them ahead of the generic fallback. A missing file is not an
// error.
func (r *Registry) LoadCustomAdapters(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read adapters file: %w", err)
	}

	var file customFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse adapters file %s: %w", path, err)
	}

	for _, spec := range file.Adapters {
		if spec.Name == "" || len(spec.StartCommand) == 0 {
			return fmt.Errorf("adapter in %s missing name or start_command", path)
		}
		ready := genericReady
		if spec.ReadyPattern != "" {
			compiled, err := regexp.Compile(spec.ReadyPattern)
			if err != nil {
				return fmt.Errorf("adapter %s: compile ready_pattern: %w", spec.Name, err)
			}
			ready = compiled
		}
		r.RegisterBefore("npm-dev", &customAdapter{spec: spec, ready: ready})
	}
	return nil
}
