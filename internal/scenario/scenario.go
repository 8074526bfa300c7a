// Package scenario defines the YAML test format for flow runs and
// executes it against the target through the harness.
//
// A scenario names a flow graph, the messages to inject into it, how
// many framed messages to collect, and ordered subset expectations on
// those messages:
//
//	name: inject-two-messages
//	description: "inject node delivers both payloads in order"
//	flows:
//	  - id: "100"
//	    type: tab
//	  - id: "1"
//	    z: "100"
//	    type: console-json
//	injections:
//	  - nid: "1"
//	    msg: { payload: hello }
//	  - nid: "1"
//	    msg: { payload: world }
//	expect: 2
//	messages:
//	  - payload: hello
//	  - payload: world
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZJvandeWeg/rust-red/internal/flows"
)

// Scenario is one YAML test case.
type Scenario struct {
	// Name uniquely identifies the scenario; also the golden file name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Flows is the graph handed to the target, before injections.
	Flows []flows.Node `yaml:"flows"`

	// Injections are messages pushed into named nodes at startup.
	Injections []flows.Injection `yaml:"injections,omitempty"`

	// Expect is how many framed messages to collect before stopping the
	// target.
	Expect int `yaml:"expect"`

	// Messages holds ordered subset expectations: messages[i] must be a
	// subset of the i-th collected payload. May be shorter than Expect;
	// extra collected messages are not asserted on.
	Messages []map[string]any `yaml:"messages,omitempty"`

	// ReadTimeout overrides the harness per-read inactivity bound, as a
	// Go duration string ("2s", "500ms"). Empty keeps the default.
	ReadTimeout string `yaml:"read_timeout,omitempty"`
}

// Validate checks structural requirements before a scenario runs.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if len(s.Flows) == 0 {
		return fmt.Errorf("scenario %q has no flows", s.Name)
	}
	if s.Expect < 0 {
		return fmt.Errorf("scenario %q: expect must not be negative", s.Name)
	}
	if len(s.Messages) > s.Expect {
		return fmt.Errorf("scenario %q: %d message expectations but expect is %d",
			s.Name, len(s.Messages), s.Expect)
	}
	if s.ReadTimeout != "" {
		if _, err := time.ParseDuration(s.ReadTimeout); err != nil {
			return fmt.Errorf("scenario %q: invalid read_timeout: %w", s.Name, err)
		}
	}
	return nil
}

// readTimeout returns the parsed override, or zero for the default.
// Validate must have succeeded first.
func (s *Scenario) readTimeout() time.Duration {
	if s.ReadTimeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

// Load reads and validates a single scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name
// so execution order is stable.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, p := range paths {
		sc, err := Load(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, p)
		}
		seen[sc.Name] = p
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
