package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"copilot-gateway/internal/core"
)

// AtomicRequestStats thread-safe request counters
type AtomicRequestStats struct {
	TotalRequests      atomic.Int64
	SuccessfulRequests atomic.Int64
	FailedRequests     atomic.Int64
	TotalResponseTime  atomic.Int64
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
	Now          func() time.Time
}

// MetricsService collects request statistics for /api/stats and persists
// them through the configured storage.
type MetricsService struct {
	atomicStats     AtomicRequestStats
	historyMu       sync.RWMutex
	requestHistory  []core.RequestRecord
	lastRequestTime time.Time
	lastSaveTime    time.Time
	maxHistorySize  int
	minSaveInterval time.Duration
	storage         core.StorageInterface
	logger          core.Logger
	now             func() time.Time

	recentMu       sync.Mutex
	recentRequests []time.Time

	saveMu sync.Mutex
	closed atomic.Bool
}

// Snapshot is the document served by the stats endpoint.
type Snapshot struct {
	TotalRequests      int64                       `json:"total_requests"`
	SuccessfulRequests int64                       `json:"successful_requests"`
	FailedRequests     int64                       `json:"failed_requests"`
	SuccessRate        float64                     `json:"success_rate"`
	AvgResponseTime    int64                       `json:"avg_response_time"`
	QPS                float64                     `json:"qps"`
	LastRequestTime    time.Time                   `json:"last_request_time"`
	Models             map[string]int64            `json:"models"`
	Endpoints          map[string]int64            `json:"endpoints"`
	Periods            map[string]core.PeriodStats `json:"periods"`
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.MaxRequestHistory
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MetricsService{
		maxHistorySize:  config.HistorySize,
		minSaveInterval: config.SaveInterval,
		storage:         config.Storage,
		logger:          config.Logger,
		now:             config.Now,
	}
}

// RecordRequest records the outcome of one proxied request.
func (ms *MetricsService) RecordRequest(success bool, responseTime int64, model, endpoint string) {
	now := ms.now()
	ms.atomicStats.TotalRequests.Add(1)
	ms.atomicStats.TotalResponseTime.Add(responseTime)
	if success {
		ms.atomicStats.SuccessfulRequests.Add(1)
	} else {
		ms.atomicStats.FailedRequests.Add(1)
	}

	ms.recentMu.Lock()
	ms.recentRequests = append(pruneBefore(ms.recentRequests, now.Add(-time.Minute)), now)
	ms.recentMu.Unlock()

	ms.historyMu.Lock()
	ms.lastRequestTime = now
	ms.requestHistory = append(ms.requestHistory, core.RequestRecord{
		Timestamp:    now,
		Success:      success,
		ResponseTime: responseTime,
		Model:        model,
		Endpoint:     endpoint,
	})
	if over := len(ms.requestHistory) - ms.maxHistorySize; over > 0 {
		ms.requestHistory = append(ms.requestHistory[:0:0], ms.requestHistory[over:]...)
	}
	ms.historyMu.Unlock()

	ms.SaveStatsDebounced()
}

// RecordSince records a request that started at start.
func (ms *MetricsService) RecordSince(start time.Time, success bool, model, endpoint string) {
	ms.RecordRequest(success, ms.now().Sub(start).Milliseconds(), model, endpoint)
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}

// GetQPS returns the request rate over the last minute.
func (ms *MetricsService) GetQPS() float64 {
	ms.recentMu.Lock()
	defer ms.recentMu.Unlock()

	ms.recentRequests = pruneBefore(ms.recentRequests, ms.now().Add(-time.Minute))
	if len(ms.recentRequests) == 0 {
		return 0
	}
	return math.Round(float64(len(ms.recentRequests))/60.0*1000) / 1000
}

// GetRequestStats returns the persisted form of the current statistics.
func (ms *MetricsService) GetRequestStats() core.RequestStats {
	ms.historyMu.RLock()
	defer ms.historyMu.RUnlock()

	historyCopy := make([]core.RequestRecord, len(ms.requestHistory))
	copy(historyCopy, ms.requestHistory)

	return core.RequestStats{
		TotalRequests:      ms.atomicStats.TotalRequests.Load(),
		SuccessfulRequests: ms.atomicStats.SuccessfulRequests.Load(),
		FailedRequests:     ms.atomicStats.FailedRequests.Load(),
		TotalResponseTime:  ms.atomicStats.TotalResponseTime.Load(),
		LastRequestTime:    ms.lastRequestTime,
		RequestHistory:     historyCopy,
	}
}

// Snapshot summarizes the statistics. Model and endpoint counts cover the
// retained history only.
func (ms *MetricsService) Snapshot() Snapshot {
	stats := ms.GetRequestStats()

	snap := Snapshot{
		TotalRequests:      stats.TotalRequests,
		SuccessfulRequests: stats.SuccessfulRequests,
		FailedRequests:     stats.FailedRequests,
		QPS:                ms.GetQPS(),
		LastRequestTime:    stats.LastRequestTime,
		Models:             map[string]int64{},
		Endpoints:          map[string]int64{},
		Periods:            map[string]core.PeriodStats{},
	}
	if stats.TotalRequests > 0 {
		snap.SuccessRate = math.Round(float64(stats.SuccessfulRequests)/float64(stats.TotalRequests)*10000) / 100
		snap.AvgResponseTime = stats.TotalResponseTime / stats.TotalRequests
	}
	for _, r := range stats.RequestHistory {
		if r.Model != "" {
			snap.Models[r.Model]++
		}
		if r.Endpoint != "" {
			snap.Endpoints[r.Endpoint]++
		}
	}
	periods := GetPeriodStats(ms.now(), stats.RequestHistory, 1, 24)
	snap.Periods["1h"] = periods[1]
	snap.Periods["24h"] = periods[24]
	return snap
}

// GetPeriodStats computes period statistics for multiple hour windows in a single pass.
func GetPeriodStats(now time.Time, history []core.RequestRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	cutoffs := make([]time.Time, len(hourPeriods))
	requests := make([]int64, len(hourPeriods))
	successful := make([]int64, len(hourPeriods))
	responseTime := make([]int64, len(hourPeriods))

	for i, hours := range hourPeriods {
		cutoffs[i] = now.Add(-time.Duration(hours) * time.Hour)
	}

	for _, record := range history {
		for i, cutoff := range cutoffs {
			if record.Timestamp.After(cutoff) {
				requests[i]++
				responseTime[i] += record.ResponseTime
				if record.Success {
					successful[i]++
				}
			}
		}
	}

	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for i, hours := range hourPeriods {
		stats := core.PeriodStats{
			Requests: requests[i],
			QPS:      float64(requests[i]) / (float64(hours) * 3600.0),
		}
		if requests[i] > 0 {
			stats.SuccessRate = float64(successful[i]) / float64(requests[i]) * 100
			stats.AvgResponseTime = responseTime[i] / requests[i]
		}
		result[hours] = stats
	}
	return result
}

// LoadStats restores statistics from storage.
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.atomicStats.TotalRequests.Store(stats.TotalRequests)
	ms.atomicStats.SuccessfulRequests.Store(stats.SuccessfulRequests)
	ms.atomicStats.FailedRequests.Store(stats.FailedRequests)
	ms.atomicStats.TotalResponseTime.Store(stats.TotalResponseTime)

	history := stats.RequestHistory
	if over := len(history) - ms.maxHistorySize; over > 0 {
		history = history[over:]
	}

	ms.historyMu.Lock()
	ms.lastRequestTime = stats.LastRequestTime
	ms.requestHistory = append([]core.RequestRecord(nil), history...)
	ms.historyMu.Unlock()
	return nil
}

// SaveStatsDebounced persists the statistics at most once per save interval.
func (ms *MetricsService) SaveStatsDebounced() {
	if ms.storage == nil || ms.closed.Load() {
		return
	}

	now := ms.now()
	ms.historyMu.Lock()
	if !ms.lastSaveTime.IsZero() && now.Sub(ms.lastSaveTime) < ms.minSaveInterval {
		ms.historyMu.Unlock()
		return
	}
	ms.lastSaveTime = now
	ms.historyMu.Unlock()

	if err := ms.save(); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

func (ms *MetricsService) save() error {
	ms.saveMu.Lock()
	defer ms.saveMu.Unlock()
	stats := ms.GetRequestStats()
	return ms.storage.SaveStats(&stats)
}

// Close saves the final statistics.
func (ms *MetricsService) Close() error {
	if !ms.closed.CompareAndSwap(false, true) {
		return nil
	}
	if ms.storage == nil {
		return nil
	}
	return ms.save()
}
