package monitor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ThreatScanner analyzes plugin parameters and output for injection and
// escape attempts. This is an additional detection layer on top of the
// capability table; a hit is flagged for audit, not blocked, since schema
// validation has already accepted the value.
type ThreatScanner struct {
	patterns []DetectionPattern
}

// DetectionPattern defines a suspicious pattern to match.
type DetectionPattern struct {
	Name        string
	Description string
	Regex       *regexp.Regexp
	Severity    Severity
}

// Severity levels for detected threats.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Detection represents a detected suspicious pattern.
type Detection struct {
	Pattern   string `json:"pattern"`
	Severity  string `json:"severity"`
	Detail    string `json:"detail"`
	Parameter string `json:"parameter,omitempty"`
}

// NewThreatScanner creates a scanner with default patterns.
func NewThreatScanner() *ThreatScanner {
	return &ThreatScanner{
		patterns: defaultPatterns(),
	}
}

// ScanParams walks the sanitized parameter map and checks every string value
// against the pattern set. Nested objects and arrays are descended into.
func (s *ThreatScanner) ScanParams(params map[string]any) []Detection {
	var detections []Detection
	for name, value := range params {
		detections = append(detections, s.scanValue(name, value)...)
	}
	return detections
}

func (s *ThreatScanner) scanValue(path string, value any) []Detection {
	switch v := value.(type) {
	case string:
		return s.scanString(path, v)
	case []any:
		var detections []Detection
		for i, item := range v {
			detections = append(detections, s.scanValue(fmt.Sprintf("%s[%d]", path, i), item)...)
		}
		return detections
	case map[string]any:
		var detections []Detection
		for key, item := range v {
			detections = append(detections, s.scanValue(path+"."+key, item)...)
		}
		return detections
	}
	return nil
}

func (s *ThreatScanner) scanString(path, value string) []Detection {
	var detections []Detection
	for _, p := range s.patterns {
		if p.Regex.MatchString(value) {
			detections = append(detections, Detection{
				Pattern:   p.Name,
				Severity:  p.Severity.String(),
				Detail:    p.Description,
				Parameter: path,
			})

			log.Warn().
				Str("pattern", p.Name).
				Str("severity", p.Severity.String()).
				Str("parameter", path).
				Msg("suspicious content in plugin parameter")
		}
	}
	return detections
}

// ScanOutput checks plugin output for signs of a successful escape.
func (s *ThreatScanner) ScanOutput(output string) []Detection {
	var detections []Detection

	outputPatterns := []struct {
		name   string
		substr string
		sev    Severity
	}{
		{"host_info_leak", "host:", SeverityMedium},
		{"kernel_leak", "Linux version", SeverityHigh},
		{"root_access", "root:x:0:0", SeverityCritical},
		{"env_leak", "PATH=/", SeverityMedium},
	}

	for _, p := range outputPatterns {
		if strings.Contains(output, p.substr) {
			detections = append(detections, Detection{
				Pattern:  p.name,
				Severity: p.sev.String(),
				Detail:   "suspicious content in output: " + p.name,
			})
		}
	}

	return detections
}

func defaultPatterns() []DetectionPattern {
	return []DetectionPattern{
		{
			Name:        "proc_self_access",
			Description: "Accessing /proc/self for process info",
			Regex:       regexp.MustCompile(`/proc/self/(root|exe|fd|ns|maps|status)`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "path_traversal",
			Description: "Path traversal sequence in parameter",
			Regex:       regexp.MustCompile(`\.\./\.\.|\.\.\\\.\.|%2e%2e%2f`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "shell_injection",
			Description: "Shell metacharacters suggesting command injection",
			Regex:       regexp.MustCompile(`[;&|]\s*(sh|bash|rm|curl|wget|nc)\b|\$\(.*\)|` + "`" + `.*` + "`"),
			Severity:    SeverityCritical,
		},
		{
			Name:        "metadata_service",
			Description: "Attempting to reach cloud metadata service",
			Regex:       regexp.MustCompile(`169\.254\.169\.254|metadata\.google|metadata\.aws`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "reverse_shell",
			Description: "Potential reverse shell command",
			Regex:       regexp.MustCompile(`(?i)(nc|ncat|netcat|socat)\s+.*-[elp]|/dev/tcp/|bash\s+-i\s+>&`),
			Severity:    SeverityCritical,
		},
		{
			Name:        "sql_injection",
			Description: "SQL injection fragment in parameter",
			Regex:       regexp.MustCompile(`(?i)('\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+|union\s+select|;\s*drop\s+table)`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "ssrf_local",
			Description: "URL targeting loopback or link-local address",
			Regex:       regexp.MustCompile(`(?i)https?://(localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "crypto_miner",
			Description: "Potential cryptocurrency mining",
			Regex:       regexp.MustCompile(`(?i)(stratum\+tcp|xmrig|minerd|cryptonight|hashrate)`),
			Severity:    SeverityMedium,
		},
	}
}
