// Package config loads the kernel's boot descriptor: the initial task list
// and the starting semaphore counts. This is the declarative replacement for
// original_source/rtos.c's compile-time sequence of createThread calls. The
// RAM region layout and the static MPU program are fixed in internal/mpu and
// are not read from the descriptor.
//
// Grounded on internal/bundle's YAML metadata loader: the same
// os.ReadFile + yaml.Unmarshal + normalize shape, adapted from a VM bundle
// manifest to a kernel boot descriptor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskSpec describes one task to be created at boot.
type TaskSpec struct {
	Name      string `yaml:"name"`
	Priority  uint8  `yaml:"priority"`
	StackSize uint32 `yaml:"stackSize"`
}

// Boot is the full boot descriptor: the task list plus the initial counts
// for the fixed-size semaphore table. Mutexes always start unlocked and have
// no entry here.
type Boot struct {
	Version int        `yaml:"version"`
	Tasks   []TaskSpec `yaml:"tasks"`

	// SemaphoreInit gives the starting count for semaphore index i.
	// original_source/rtos.c's initSemaphore calls for keyPressed (1),
	// keyReleased (0) and flashReq (5) become entries here.
	SemaphoreInit []uint8 `yaml:"semaphoreInit,omitempty"`
}

func (b *Boot) normalize() {
	if b.Version == 0 {
		b.Version = 1
	}
}

// Load reads and validates a boot descriptor from path.
func Load(path string) (Boot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Boot{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and unmarshals raw YAML into a Boot descriptor.
func Parse(data []byte) (Boot, error) {
	var b Boot
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Boot{}, fmt.Errorf("config: parse boot descriptor: %w", err)
	}
	b.normalize()
	if err := b.Validate(); err != nil {
		return Boot{}, err
	}
	return b, nil
}

// Validate reports the first structural problem found in b, if any.
func (b *Boot) Validate() error {
	if len(b.Tasks) == 0 {
		return fmt.Errorf("config: boot descriptor has no tasks")
	}
	seen := make(map[string]bool, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.Name == "" {
			return fmt.Errorf("config: task with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate task name %q", t.Name)
		}
		seen[t.Name] = true
		if t.Priority > 15 {
			return fmt.Errorf("config: task %q priority %d out of range [0,15]", t.Name, t.Priority)
		}
		if t.StackSize == 0 {
			return fmt.Errorf("config: task %q has zero stack size", t.Name)
		}
	}
	return nil
}
