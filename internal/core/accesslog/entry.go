package accesslog

// LogEntry is the record appended for every successfully parsed request.
type LogEntry struct {
	Timestamp string            `json:"timestamp"`
	PeerAddr  string            `json:"peer_addr"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
}
