package metrics

import (
	"bufio"
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
)

// FileSizer reports on-disk sizes of an embedded store.
type FileSizer interface {
	DBSizeBytes() int64
	WALSizeBytes() int64
}

// ResourceCollector samples host resources at scrape time: cgroup memory and
// CPU quota, free space under dataDir, process RSS and store file sizes.
type ResourceCollector struct {
	dataDir string
	store   FileSizer

	memCurrent *prometheus.Desc
	memLimit   *prometheus.Desc
	cpuCores   *prometheus.Desc
	diskUsed   *prometheus.Desc
	diskFree   *prometheus.Desc
	rss        *prometheus.Desc
	dbSize     *prometheus.Desc
	walSize    *prometheus.Desc
}

// NewResourceCollector samples dataDir for disk stats. store may be nil when
// the service runs against PostgreSQL.
func NewResourceCollector(dataDir string, store FileSizer) *ResourceCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &ResourceCollector{
		dataDir:    dataDir,
		store:      store,
		memCurrent: desc("cgroup_memory_bytes", "Current cgroup memory usage."),
		memLimit:   desc("cgroup_memory_limit_bytes", "cgroup memory limit, 0 when unlimited."),
		cpuCores:   desc("cgroup_cpu_cores", "Effective CPU cores from the cgroup quota."),
		diskUsed:   desc("data_disk_used_bytes", "Used bytes on the data directory filesystem."),
		diskFree:   desc("data_disk_free_bytes", "Available bytes on the data directory filesystem."),
		rss:        desc("resident_memory_bytes", "Process VmRSS."),
		dbSize:     desc("store_db_bytes", "Size of the SQLite database file."),
		walSize:    desc("store_wal_bytes", "Size of the SQLite WAL file."),
	}
}

func (c *ResourceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memCurrent
	ch <- c.memLimit
	ch <- c.cpuCores
	ch <- c.diskUsed
	ch <- c.diskFree
	ch <- c.rss
	ch <- c.dbSize
	ch <- c.walSize
}

func (c *ResourceCollector) Collect(ch chan<- prometheus.Metric) {
	current, limit := readMemoryCgroup()
	ch <- prometheus.MustNewConstMetric(c.memCurrent, prometheus.GaugeValue, float64(current))
	ch <- prometheus.MustNewConstMetric(c.memLimit, prometheus.GaugeValue, float64(limit))
	ch <- prometheus.MustNewConstMetric(c.cpuCores, prometheus.GaugeValue, readCPUCgroupCores())

	used, _, free := readDiskStats(c.dataDir)
	ch <- prometheus.MustNewConstMetric(c.diskUsed, prometheus.GaugeValue, float64(used))
	ch <- prometheus.MustNewConstMetric(c.diskFree, prometheus.GaugeValue, float64(free))

	if rss, err := CurrentRSSBytes(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.rss, prometheus.GaugeValue, float64(rss))
	}
	if c.store != nil {
		ch <- prometheus.MustNewConstMetric(c.dbSize, prometheus.GaugeValue, float64(c.store.DBSizeBytes()))
		ch <- prometheus.MustNewConstMetric(c.walSize, prometheus.GaugeValue, float64(c.store.WALSizeBytes()))
	}
}

// CurrentRSSBytes returns VmRSS bytes from /proc/self/status (Linux only).
func CurrentRSSBytes() (int64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "VmRSS:" {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("VmRSS not found")
}

func readCPUCgroupCores() float64 {
	data, err := os.ReadFile("/sys/fs/cgroup/cpu.max")
	if err != nil {
		return float64(runtime.NumCPU())
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[0] == "max" {
		return float64(runtime.NumCPU())
	}
	quota, err1 := strconv.ParseFloat(fields[0], 64)
	period, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || period <= 0 {
		return float64(runtime.NumCPU())
	}
	return max(quota/period, 1)
}

func readMemoryCgroup() (current int64, limit int64) {
	curBytes, err := os.ReadFile("/sys/fs/cgroup/memory.current")
	if err != nil {
		return 0, 0
	}
	current, _ = strconv.ParseInt(strings.TrimSpace(string(curBytes)), 10, 64)

	maxBytes, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return current, 0
	}
	maxStr := strings.TrimSpace(string(maxBytes))
	if maxStr == "max" {
		return current, 0
	}
	limit, _ = strconv.ParseInt(maxStr, 10, 64)
	return current, limit
}

func readDiskStats(path string) (used int64, total int64, free int64) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0
	}
	total = int64(stat.Blocks) * int64(stat.Bsize)
	free = int64(stat.Bavail) * int64(stat.Bsize)
	return total - free, total, free
}
