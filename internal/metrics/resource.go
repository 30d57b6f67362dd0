package metrics

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// sampleProcess records CPU% and RSS (in MB) for the current process via
// gopsutil, the same library the teacher pulled in transitively for
// container introspection in its integration test tier — promoted here to
// a direct dependency for live process sampling.
func (c *Collector) sampleProcess() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	if cpuPercent, err := proc.CPUPercent(); err == nil {
		c.SetGauge("cpu_percent", cpuPercent)
	}

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		c.SetGauge("rss_mb", float64(memInfo.RSS)/(1024*1024))
	}
}

// tcpCounters are the /proc/net/netstat fields this collector cares about;
// zero/unavailable on platforms without that file (e.g. macOS, Windows).
var tcpCounters = map[string]string{
	"TCPRetransFail":  "tcp_retransmits",
	"TCPOFOQueue":     "tcp_out_of_order",
	"TCPBacklogDrop":  "tcp_drops",
	"TCPLossFailures": "tcp_loss_failures",
}

// sampleTCP reads TCP-layer counters from /proc/net/netstat, which is laid
// out as pairs of header/value lines sharing column names. It silently does
// nothing when the file isn't present, per the spec's "zero/unavailable on
// other platforms" allowance.
func (c *Collector) sampleTCP() {
	//nolint:gosec // fixed, non-configurable kernel interface path
	f, err := os.Open("/proc/net/netstat")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var headers []string
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if headers == nil {
			headers = fields
			continue
		}
		if len(fields) != len(headers) {
			headers = nil
			continue
		}
		for i, header := range headers[1:] {
			gaugeName, want := tcpCounters[header]
			if !want {
				continue
			}
			if v, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
				c.SetGauge(gaugeName, v)
			}
		}
		headers = nil
	}
}
