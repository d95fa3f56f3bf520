package device

import (
	"bufio"
	"context"
	"strings"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/runner"
)

// ReadyState is the adb state of a device that can be flashed.
const ReadyState = "device"

// Record is one line of `adb devices -l`.
type Record struct {
	Serial string
	// State is adb's connection state: device, offline, unauthorized,
	// bootloader, recovery...
	State string
	// Product is the device codename from the device: (or product:) field.
	Product string
	Model   string
}

// Ready reports whether the device is connected and authorized.
func (r Record) Ready() bool {
	return r.State == ReadyState
}

// Target is the lunch target built for the device.
func (r Record) Target() string {
	return "aosp_" + r.Product + "-eng"
}

// Enumerate lists connected devices with `adb devices -l`. A failing adb
// yields no devices: it only means there is nothing to test.
func Enumerate(ctx context.Context, r runner.Runner, adb string) []Record {
	out, err := r.Output(ctx, runner.Command{Name: adb, Args: []string{"devices", "-l"}})
	if err != nil {
		glog.Warningf("adb devices failed, assuming no devices: %v", err)
		return nil
	}
	return ParseDevices(out)
}

// ParseDevices parses `adb devices -l` output.
func ParseDevices(output string) []Record {
	var records []Record
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rec := Record{Serial: fields[0], State: fields[1]}
		var product string
		for _, f := range fields[2:] {
			key, value, ok := strings.Cut(f, ":")
			if !ok {
				continue
			}
			switch key {
			case "device":
				rec.Product = value
			case "product":
				product = value
			case "model":
				rec.Model = value
			}
		}
		if rec.Product == "" {
			rec.Product = product
		}
		records = append(records, rec)
	}
	return records
}
