package metrics

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats содержит метрики процесса симулятора
type ProcessStats struct {
	StartTime time.Time
}

// NewProcessStats создает новый экземпляр метрик
func NewProcessStats() *ProcessStats {
	return &ProcessStats{
		StartTime: time.Now(),
	}
}

// Uptime возвращает время работы процесса
func (ps *ProcessStats) Uptime() string {
	uptime := time.Since(ps.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// MemoryMB возвращает объём выделенной кучи в MB
func (ps *ProcessStats) MemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024
}

// CPUPercent возвращает использование CPU процессом в процентах
func (ps *ProcessStats) CPUPercent() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		// Если не удалось получить метрику процесса, берём системную
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}
	return cpuPercent, nil
}

// Summary возвращает сводку для /api/stats
func (ps *ProcessStats) Summary() map[string]interface{} {
	cpuPercent, _ := ps.CPUPercent()
	return map[string]interface{}{
		"uptime":      ps.Uptime(),
		"memory_mb":   fmt.Sprintf("%.2f", ps.MemoryMB()),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"goroutines":  runtime.NumGoroutine(),
	}
}

// RegisterGauges публикует CPU процесса и uptime как gauge-функции
func (ps *ProcessStats) RegisterGauges(reg prometheus.Registerer) error {
	cpuGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_cpu_percent",
		Help:      "Использование CPU процессом (gopsutil).",
	}, func() float64 {
		v, _ := ps.CPUPercent()
		return v
	})
	uptimeGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Время работы процесса.",
	}, func() float64 {
		return time.Since(ps.StartTime).Seconds()
	})
	for _, c := range []prometheus.Collector{cpuGauge, uptimeGauge} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
