package game

import (
	"sync"
	"time"
)

// PerformanceMonitor отслеживает производительность каждой системы
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow    int           // Количество последних тиков для усреднения
	warningThreshold time.Duration // Порог медленного выполнения системы
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string        `json:"name"`
	LastExecutionTime time.Duration `json:"last_execution_time"`
	AverageTime       time.Duration `json:"average_time"`
	MaxTime           time.Duration `json:"max_time"`
	TotalExecutions   uint64        `json:"total_executions"`
	Errors            uint64        `json:"errors"`
	SlowExecutions    uint64        `json:"slow_executions"`

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &PerformanceMonitor{
		systemMetrics:    make(map[string]*SystemMetrics),
		metricsWindow:    windowSize,
		warningThreshold: warningThreshold,
	}
}

func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++
	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}
	if pm.warningThreshold > 0 && executionTime > pm.warningThreshold {
		metrics.SlowExecutions++
	}

	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow
	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}

	var total time.Duration
	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
	}
	if limit > 0 {
		metrics.AverageTime = total / time.Duration(limit)
	}
}

// SystemsStats копия метрик всех систем
func (pm *PerformanceMonitor) SystemsStats() map[string]SystemMetrics {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	stats := make(map[string]SystemMetrics, len(pm.systemMetrics))
	for name, m := range pm.systemMetrics {
		stats[name] = SystemMetrics{
			Name:              m.Name,
			LastExecutionTime: m.LastExecutionTime,
			AverageTime:       m.AverageTime,
			MaxTime:           m.MaxTime,
			TotalExecutions:   m.TotalExecutions,
			Errors:            m.Errors,
			SlowExecutions:    m.SlowExecutions,
		}
	}
	return stats
}
