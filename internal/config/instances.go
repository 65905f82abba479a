package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InstanceType identifies the kind of histview process.
type InstanceType string

const (
	InstanceServe  InstanceType = "serve"
	InstanceView   InstanceType = "view"
	InstanceReplay InstanceType = "replay"
)

// Instance represents a running histview process.
type Instance struct {
	Type      InstanceType `json:"type"`
	PID       int          `json:"pid"`
	Port      int          `json:"port,omitempty"`
	Host      string       `json:"host,omitempty"`
	Chat      string       `json:"chat,omitempty"` // chat file the process serves or views
	StartedAt time.Time    `json:"started_at"`
}

func instancesPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "instances.json"), nil
}

// RegisterInstance adds a new instance entry, dropping dead ones first.
func RegisterInstance(inst Instance) error {
	path, err := instancesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	instances, _ := readInstances(path)
	instances = append(liveOnly(instances), inst)
	return writeInstances(path, instances)
}

// UnregisterInstance removes an instance by PID.
func UnregisterInstance(pid int) error {
	path, err := instancesPath()
	if err != nil {
		return err
	}
	instances, _ := readInstances(path)
	kept := instances[:0]
	for _, inst := range instances {
		if inst.PID != pid {
			kept = append(kept, inst)
		}
	}
	return writeInstances(path, kept)
}

// ListInstances returns all live instances and rewrites the file if any
// dead ones were found.
func ListInstances() ([]Instance, error) {
	path, err := instancesPath()
	if err != nil {
		return nil, err
	}
	instances, err := readInstances(path)
	if err != nil {
		return nil, err
	}
	live := liveOnly(instances)
	if len(live) != len(instances) {
		_ = writeInstances(path, live)
	}
	return live, nil
}

// FindServer returns a live serve instance, if there is one.
func FindServer() (Instance, bool) {
	instances, err := ListInstances()
	if err != nil {
		return Instance{}, false
	}
	for _, inst := range instances {
		if inst.Type == InstanceServe {
			return inst, true
		}
	}
	return Instance{}, false
}

func readInstances(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var instances []Instance
	if err := json.Unmarshal(data, &instances); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return instances, nil
}

func writeInstances(path string, instances []Instance) error {
	data, err := json.MarshalIndent(instances, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func liveOnly(instances []Instance) []Instance {
	live := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		if isProcessAlive(inst.PID) {
			live = append(live, inst)
		}
	}
	return live
}
