package core

import "time"

// RequestStats is the persisted statistics snapshot. Response times are in
// milliseconds.
type RequestStats struct {
	TotalRequests      int64           `json:"total_requests"`
	SuccessfulRequests int64           `json:"successful_requests"`
	FailedRequests     int64           `json:"failed_requests"`
	TotalResponseTime  int64           `json:"total_response_time"`
	LastRequestTime    time.Time       `json:"last_request_time"`
	RequestHistory     []RequestRecord `json:"request_history"`
}

// RequestRecord is one proxied request kept in the bounded history.
type RequestRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime int64     `json:"response_time"`
	// Model is the model id the consumer asked for; empty when the body never decoded.
	Model string `json:"model,omitempty"`
	// Endpoint is the matched route pattern, e.g. /v1/messages.
	Endpoint string `json:"endpoint"`
}

// PeriodStats summarizes the history inside one trailing window.
type PeriodStats struct {
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"success_rate"`
	AvgResponseTime int64   `json:"avg_response_time"`
	QPS             float64 `json:"qps"`
}
