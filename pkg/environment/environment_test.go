package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDocker(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".dockerenv")
	cgroupDocker := filepath.Join(dir, "cgroup-docker")
	cgroupHost := filepath.Join(dir, "cgroup-host")
	require.NoError(t, os.WriteFile(marker, nil, 0644))
	require.NoError(t, os.WriteFile(cgroupDocker, []byte("12:cpu:/docker/3f2a\n"), 0644))
	require.NoError(t, os.WriteFile(cgroupHost, []byte("0::/user.slice/session-2.scope\n"), 0644))

	tests := []struct {
		name   string
		det    Detector
		docker bool
	}{
		{"marker file", Detector{DockerEnvPath: marker, CgroupPath: cgroupHost}, true},
		{"cgroup hint", Detector{DockerEnvPath: filepath.Join(dir, "absent"), CgroupPath: cgroupDocker}, true},
		{"host", Detector{DockerEnvPath: filepath.Join(dir, "absent"), CgroupPath: cgroupHost}, false},
		{"nothing", Detector{DockerEnvPath: filepath.Join(dir, "absent"), CgroupPath: filepath.Join(dir, "absent")}, false},
		{"marker is a directory", Detector{DockerEnvPath: dir, CgroupPath: cgroupHost}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.docker, tt.det.IsDocker())
		})
	}
}

func TestRoots(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".dockerenv")
	require.NoError(t, os.WriteFile(marker, nil, 0644))

	inDocker := &Detector{DockerEnvPath: marker}
	assert.Equal(t, Roots{Input: "/input", Output: "/output"}, inDocker.Roots())

	local := &Detector{DockerEnvPath: filepath.Join(dir, "absent")}
	assert.Equal(t, filepath.Join("test", "input"), local.Roots().Input)
	assert.Equal(t, filepath.Join("test", "output"), local.Roots().Output)
}
