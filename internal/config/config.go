package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// workerCap bounds the number of concurrent cgback invocations. The
// reconstruction runs on a single shared GPU; more than a handful of
// simultaneous processes just thrash the device.
const workerCap = 4

type Config struct {
	CgbackBin        string `json:"cgback_bin"`
	Device           string `json:"device"`
	GPUIndex         int    `json:"gpu_index"`
	VisibleDevices   string `json:"visible_devices"`
	BatchSize        int    `json:"batch_size"`
	Workers          int    `json:"workers"`
	MaxFixIterations int    `json:"max_fix_iterations"`
	FramesDir        string `json:"frames_dir"`
	OutputsDir       string `json:"outputs_dir"`
	OutputDir        string `json:"output_dir"`
	DataDir          string `json:"data_dir"`
}

func Default() Config {
	return Config{
		CgbackBin:        "cgback",
		Device:           "cuda",
		GPUIndex:         0,
		VisibleDevices:   os.Getenv("CUDA_VISIBLE_DEVICES"),
		BatchSize:        500,
		Workers:          defaultWorkers(),
		MaxFixIterations: 200,
		FramesDir:        "frames",
		OutputsDir:       "outputs",
		OutputDir:        ".",
		DataDir:          ".",
	}
}

// Load reads a JSON config file on top of the defaults. A missing file is
// not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.GPUIndex < 0 {
		return fmt.Errorf("gpu index must not be negative, got %d", c.GPUIndex)
	}
	return nil
}

// ClampWorkers lowers an explicitly configured worker count to the GPU
// cap and reports whether it changed anything.
func (c *Config) ClampWorkers() bool {
	if c.Workers <= workerCap {
		return false
	}
	c.Workers = workerCap
	return true
}

// DeviceSelector returns the device argument handed to cgback, e.g.
// "cuda:0". A bare device kind like "cpu" is passed through unchanged.
func (c Config) DeviceSelector() string {
	if c.Device == "cuda" {
		return fmt.Sprintf("cuda:%d", c.GPUIndex)
	}
	return c.Device
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > workerCap {
		return workerCap
	}
	return n
}
