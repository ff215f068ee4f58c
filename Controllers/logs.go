package Controllers

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"SpareLink/middleware"

	"github.com/gofiber/fiber/v2"
)

// LogsHandler serves the request log written by middleware.RequestLogger.
type LogsHandler struct {
	Dir string
}

func NewLogsHandler(dir string) *LogsHandler {
	return &LogsHandler{Dir: dir}
}

// LogGroup represents a group of logs by method and path
type LogGroup struct {
	Path        string  `json:"path"`
	Method      string  `json:"method"`
	Count       int     `json:"count"`
	AvgLatency  float64 `json:"avg_latency_ms"`
	MaxLatency  float64 `json:"max_latency_ms"`
	ErrorCount  int     `json:"error_count"`
	SuccessRate float64 `json:"success_rate"`
}

// dateRange parses date_from/date_to (YYYY-MM-DD), defaulting to today.
func dateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24*time.Hour - time.Nanosecond)

	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("Invalid date_from format. Use YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("Invalid date_to format. Use YYYY-MM-DD")
		}
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

// readLogs returns entries within [from, to]. A missing file reads as empty.
func (h *LogsHandler) readLogs(from, to time.Time) ([]middleware.LogData, error) {
	file, err := os.Open(filepath.Join(h.Dir, middleware.RequestLogFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []middleware.LogData
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry middleware.LogData
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if !entry.Timestamp.Before(from) && !entry.Timestamp.After(to) {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// GetLogs lists request log entries grouped by endpoint
func (h *LogsHandler) GetLogs(c *fiber.Ctx) error {
	from, to, err := dateRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	entries, err := h.readLogs(from, to)
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read logs"})
	}

	pathFilter := strings.ToLower(c.Query("path"))
	methodFilter := strings.ToUpper(c.Query("method"))
	status, _ := strconv.Atoi(c.Query("status"))
	user, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)

	groups := make(map[string]*LogGroup)
	latencyTotals := make(map[string]float64)
	total := 0
	for _, e := range entries {
		if pathFilter != "" && !strings.Contains(strings.ToLower(e.Path), pathFilter) {
			continue
		}
		if methodFilter != "" && e.Method != methodFilter {
			continue
		}
		if status != 0 && e.Status != status {
			continue
		}
		if user != 0 && uint64(e.UserID) != user {
			continue
		}
		total++

		key := e.Method + " " + e.Path
		g, ok := groups[key]
		if !ok {
			g = &LogGroup{Path: e.Path, Method: e.Method}
			groups[key] = g
		}
		latencyMs := float64(e.Latency.Microseconds()) / 1000.0
		g.Count++
		latencyTotals[key] += latencyMs
		if latencyMs > g.MaxLatency {
			g.MaxLatency = latencyMs
		}
		if e.Status >= 400 {
			g.ErrorCount++
		}
	}

	result := make([]LogGroup, 0, len(groups))
	for key, g := range groups {
		g.AvgLatency = latencyTotals[key] / float64(g.Count)
		g.SuccessRate = float64(g.Count-g.ErrorCount) / float64(g.Count)
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Path < result[j].Path
	})

	return c.JSON(fiber.Map{
		"groups":       result,
		"total_logs":   total,
		"total_groups": len(result),
		"date_from":    from,
		"date_to":      to,
	})
}

// GetLogStats returns request totals, error rate and latency for the range
func (h *LogsHandler) GetLogStats(c *fiber.Ctx) error {
	from, to, err := dateRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	entries, err := h.readLogs(from, to)
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read logs"})
	}

	var successful, failed int
	var totalLatency, maxLatency time.Duration
	statusStats := make(map[int]int)
	roleStats := make(map[string]int)
	for _, e := range entries {
		switch {
		case e.Status >= 200 && e.Status < 300:
			successful++
		case e.Status >= 400:
			failed++
		}
		totalLatency += e.Latency
		if e.Latency > maxLatency {
			maxLatency = e.Latency
		}
		statusStats[e.Status]++
		if e.Role != "" {
			roleStats[string(e.Role)]++
		}
	}

	var avgLatency time.Duration
	successRate := 0.0
	if len(entries) > 0 {
		avgLatency = totalLatency / time.Duration(len(entries))
		successRate = float64(successful) / float64(len(entries)) * 100
	}

	return c.JSON(fiber.Map{
		"total_requests":      len(entries),
		"successful_requests": successful,
		"error_requests":      failed,
		"success_rate":        successRate,
		"avg_latency_ms":      float64(avgLatency.Microseconds()) / 1000.0,
		"max_latency_ms":      float64(maxLatency.Microseconds()) / 1000.0,
		"status_stats":        statusStats,
		"role_stats":          roleStats,
		"date_from":           from,
		"date_to":             to,
	})
}
