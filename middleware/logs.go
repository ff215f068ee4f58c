package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"SpareLink/Models"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestLogFile = "requests.log"
	ErrorLogFile   = "errors.log"
)

// LogConfig holds configuration for the logging middleware
type LogConfig struct {
	Console bool
	File    bool
	// Directory the log files are written to
	Dir string
	// Include request body in logs
	IncludeBody bool
	SkipPaths   []string
}

// LogData is one JSON line of the request log
type LogData struct {
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	URL           string        `json:"url"`
	Status        int           `json:"status"`
	Latency       time.Duration `json:"latency"`
	IP            string        `json:"ip"`
	UserAgent     string        `json:"user_agent"`
	RequestID     string        `json:"request_id"`
	RequestBody   any           `json:"request_body,omitempty"`
	Error         string        `json:"error,omitempty"`
	UserID        uint          `json:"user_id,omitempty"`
	Username      string        `json:"username,omitempty"`
	Role          Models.Role   `json:"role,omitempty"`
	Location      string        `json:"location,omitempty"`
	ContentLength int64         `json:"content_length"`
}

func DefaultLogConfig(dir string) LogConfig {
	return LogConfig{
		Console:   true,
		File:      true,
		Dir:       dir,
		SkipPaths: []string{"/health"},
	}
}

// LoggingMiddleware logs every request as a JSON line
func LoggingMiddleware(cfg LogConfig) fiber.Handler {
	if cfg.File {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			log.Printf("Error creating logs directory: %v\n", err)
		}
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}
		start := time.Now()

		var requestBody any
		if cfg.IncludeBody && c.Method() != fiber.MethodGet {
			if body := c.Body(); len(body) > 0 {
				var jsonData any
				if err := json.Unmarshal(body, &jsonData); err == nil {
					requestBody = jsonData
				} else {
					requestBody = string(body)
				}
			}
		}

		err := c.Next()

		data := newLogData(c, start, err)
		data.RequestBody = requestBody
		line, _ := json.Marshal(data)

		if cfg.Console {
			log.Println(string(line))
		}
		if cfg.File {
			logToFile(filepath.Join(cfg.Dir, RequestLogFile), string(line))
		}
		return err
	}
}

// RequestLogger logs all requests to console and <dir>/requests.log
func RequestLogger(dir string) fiber.Handler {
	return LoggingMiddleware(DefaultLogConfig(dir))
}

// ErrorLogger writes only failed requests to <dir>/errors.log
func ErrorLogger(dir string) fiber.Handler {
	path := filepath.Join(dir, ErrorLogFile)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if err != nil || c.Response().StatusCode() >= 400 {
			line, _ := json.Marshal(newLogData(c, start, err))
			logToFile(path, string(line))
		}
		return err
	}
}

func newLogData(c *fiber.Ctx, start time.Time, err error) LogData {
	data := LogData{
		Timestamp:     start,
		Method:        c.Method(),
		Path:          c.Path(),
		URL:           c.OriginalURL(),
		Status:        c.Response().StatusCode(),
		Latency:       time.Since(start),
		IP:            c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
		RequestID:     c.Get("X-Request-ID"),
		ContentLength: int64(len(c.Response().Body())),
	}
	if p, ok := c.Locals(PrincipalKey).(Models.Principal); ok {
		data.UserID = p.UserID
		data.Username = p.Name
		data.Role = p.Role
		data.Location = p.Location.String()
	}
	if err != nil {
		data.Error = err.Error()
	}
	return data
}

var fileMu sync.Mutex

// logToFile appends one line to the log file
func logToFile(filePath, message string) {
	fileMu.Lock()
	defer fileMu.Unlock()

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, message); err != nil {
		log.Printf("Error writing to log file: %v\n", err)
	}
}
