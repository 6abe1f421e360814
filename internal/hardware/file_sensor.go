package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileSensor reads a thermocouple exposed by a kernel driver as a file holding
// millidegrees Celsius, such as a hwmon temp1_input or an IIO in_temp_raw node.
type FileSensor struct {
	path  string
	scale float64
}

func NewFileSensor(path string) *FileSensor {
	return &FileSensor{path: path, scale: 0.001}
}

// ReadTemperature implements engine.Sensor.
func (s *FileSensor) ReadTemperature() (float64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read sensor: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse sensor value %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return v * s.scale, nil
}
