package runtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thomasrohde/mocha/go/pkg/evaluator"
)

// TraceWriter writes trace events as newline-delimited JSON.
type TraceWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewTraceWriter returns a TraceWriter that writes to w.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{enc: json.NewEncoder(w)}
}

// Emit writes one event. It matches the evaluator's trace callback, so it
// can be passed to WithTrace directly. After the first write error further
// events are dropped; Err reports it.
func (tw *TraceWriter) Emit(event evaluator.TraceEvent) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.err != nil {
		return
	}
	tw.err = tw.enc.Encode(event)
}

// Err returns the first write error, if any.
func (tw *TraceWriter) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// TraceSummary aggregates a trace file.
type TraceSummary struct {
	RunID        string         `json:"runId"`
	Runs         int            `json:"runs"`
	TotalEvents  int            `json:"totalEvents"`
	Statements   int            `json:"statements"`
	Calls        int            `json:"calls"`
	CallsByName  map[string]int `json:"callsByName"`
	Loops        int            `json:"loops"`
	Says         int            `json:"says"`
	Exits        int            `json:"exits"`
	Errors       int            `json:"errors"`
	ErrorsByCode map[string]int `json:"errorsByCode,omitempty"`
	StartTime    string         `json:"startTime,omitempty"`
	EndTime      string         `json:"endTime,omitempty"`
	DurationMs   float64        `json:"durationMs"`
}

type traceLine struct {
	Event string         `json:"event"`
	RunID string         `json:"runId"`
	TS    string         `json:"ts"`
	Data  map[string]any `json:"data,omitempty"`
}

// SummarizeTrace reads NDJSON trace events from r. Blank and malformed lines
// are skipped.
func SummarizeTrace(r io.Reader) (*TraceSummary, error) {
	summary := &TraceSummary{
		CallsByName:  make(map[string]int),
		ErrorsByCode: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event traceLine
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch evaluator.TraceEventType(event.Event) {
		case evaluator.TraceRunStart:
			summary.Runs++
			if summary.StartTime == "" {
				summary.StartTime = event.TS
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.TS
		case evaluator.TraceStmtStart:
			summary.Statements++
		case evaluator.TraceCallStart:
			summary.Calls++
			if name, ok := event.Data["fn"].(string); ok {
				summary.CallsByName[name]++
			}
		case evaluator.TraceForStart, evaluator.TraceWhileStart:
			summary.Loops++
		case evaluator.TraceSay:
			summary.Says++
		case evaluator.TraceExit:
			summary.Exits++
		case evaluator.TraceError:
			summary.Errors++
			if code, ok := event.Data["code"].(string); ok {
				summary.ErrorsByCode[code]++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := parseTime(summary.StartTime)
		end, err2 := parseTime(summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Microseconds()) / 1000
		}
	}
	return summary, nil
}

// WriteText prints the summary in a human-readable form.
func (s *TraceSummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d (%d runs, %d statements)\n", s.TotalEvents, s.Runs, s.Statements)
	fmt.Fprintf(w, "Calls: %d\n", s.Calls)
	for _, name := range sortedKeys(s.CallsByName) {
		fmt.Fprintf(w, "  %s: %d\n", name, s.CallsByName[name])
	}
	fmt.Fprintf(w, "Loops: %d\n", s.Loops)
	fmt.Fprintf(w, "Output: %d say, %d exit\n", s.Says, s.Exits)
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	for _, code := range sortedKeys(s.ErrorsByCode) {
		fmt.Fprintf(w, "  %s: %d\n", code, s.ErrorsByCode[code])
	}
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.3fms\n", s.DurationMs)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
