package transcriber

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

func ParseDevice(s string) (Device, error) {
	switch Device(s) {
	case "", DeviceAuto:
		return DeviceAuto, nil
	case DeviceCPU, DeviceCUDA:
		return Device(s), nil
	}
	return "", fmt.Errorf("unknown compute device %q (use auto, cpu or cuda)", s)
}

// Models are the whisper model sizes the whisper engine accepts.
var Models = []string{"tiny", "base", "small", "medium", "large-v3"}

func ValidModel(size string) bool {
	for _, m := range Models {
		if m == size {
			return true
		}
	}
	return false
}

var (
	nvidiaDeviceNode = "/dev/nvidiactl"
	nvidiaSMI        = "nvidia-smi"
)

// DetectDevice checks for a usable NVIDIA GPU. It looks at the driver's
// control node first and falls back to asking nvidia-smi.
func DetectDevice(ctx context.Context) Device {
	if _, err := os.Stat(nvidiaDeviceNode); err == nil {
		return DeviceCUDA
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, nvidiaSMI, "-L").Output()
	if err == nil && strings.Contains(string(out), "GPU") {
		return DeviceCUDA
	}
	return DeviceCPU
}

// ResolveDevice turns DeviceAuto into a concrete device.
func ResolveDevice(ctx context.Context, d Device) Device {
	if d == DeviceAuto || d == "" {
		return DetectDevice(ctx)
	}
	return d
}

func RecommendedModel(d Device) string {
	if d == DeviceCUDA {
		return "base"
	}
	return "tiny"
}

func ComputeType(d Device) string {
	if d == DeviceCUDA {
		return "float16"
	}
	return "int8"
}

type GPU struct {
	Name     string
	MemoryMB int
	Driver   string
}

func QueryGPU(ctx context.Context) (*GPU, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, nvidiaSMI,
		"--query-gpu=name,memory.total,driver_version",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseGPU(string(out))
}

// parseGPU reads the first line of nvidia-smi csv output.
func parseGPU(out string) (*GPU, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return nil, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}
	mem, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, fmt.Errorf("parsing GPU memory: %w", err)
	}
	return &GPU{
		Name:     strings.TrimSpace(fields[0]),
		MemoryMB: mem,
		Driver:   strings.TrimSpace(fields[2]),
	}, nil
}

// ModelInfo describes how the gateway was configured.
type ModelInfo struct {
	Engine      string
	Model       string
	Device      Device
	ComputeType string
	Language    string
	GPU         *GPU
}

func (m ModelInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine:   %s\n", m.Engine)
	fmt.Fprintf(&b, "model:    %s\n", m.Model)
	if m.Device != "" {
		fmt.Fprintf(&b, "device:   %s (%s)\n", m.Device, m.ComputeType)
	}
	lang := m.Language
	if lang == "" {
		lang = "auto"
	}
	fmt.Fprintf(&b, "language: %s\n", lang)
	if m.GPU != nil {
		fmt.Fprintf(&b, "gpu:      %s, %d MB, driver %s\n", m.GPU.Name, m.GPU.MemoryMB, m.GPU.Driver)
	}
	return b.String()
}
