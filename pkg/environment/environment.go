// Package environment decides whether the process runs inside a container
// and picks the input and output roots accordingly.
package environment

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DockerEnvFile is created by the Docker runtime in every container
	DockerEnvFile = "/.dockerenv"

	// CgroupFile lists the control groups of the current process
	CgroupFile = "/proc/self/cgroup"

	containerHint = "docker"
)

// Roots holds the directories inputs are read from and outputs written to
type Roots struct {
	Input  string
	Output string
}

// ContainerRoots are the absolute roots used inside the evaluation container
var ContainerRoots = Roots{Input: "/input", Output: "/output"}

// LocalRoots are the relative roots used for local test runs
var LocalRoots = Roots{
	Input:  filepath.Join(".", "test", "input"),
	Output: filepath.Join(".", "test", "output"),
}

// Detector inspects filesystem markers. The zero value is not usable; use NewDetector.
type Detector struct {
	DockerEnvPath string
	CgroupPath    string
}

// NewDetector returns a detector looking at the standard container markers
func NewDetector() *Detector {
	return &Detector{DockerEnvPath: DockerEnvFile, CgroupPath: CgroupFile}
}

// IsDocker reports whether the marker file exists, or the cgroup descriptor
// mentions docker.
func (d *Detector) IsDocker() bool {
	if isFile(d.DockerEnvPath) {
		return true
	}
	if !isFile(d.CgroupPath) {
		return false
	}
	data, err := os.ReadFile(d.CgroupPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), containerHint)
}

// Roots returns the container roots inside Docker and the local roots otherwise
func (d *Detector) Roots() Roots {
	if d.IsDocker() {
		return ContainerRoots
	}
	return LocalRoots
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
