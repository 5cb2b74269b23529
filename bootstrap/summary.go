package bootstrap

import (
	"fmt"
	"io"
	"time"
)

// InfrastructureInfo holds one backend the job depends on.
type InfrastructureInfo struct {
	Name    string
	Type    string // e.g. "storage", "telemetry", "kafka"
	Status  string
	Details string
	Healthy bool
}

// SettingInfo is one effective configuration value worth showing at startup.
type SettingInfo struct {
	Name  string
	Value string
}

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	infrastructure  []InfrastructureInfo
	settings        []SettingInfo
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName:    serviceName,
		version:        version,
		infrastructure: make([]InfrastructureInfo, 0),
		settings:       make([]SettingInfo, 0),
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackInfrastructure adds a backend with its status.
func (s *Summary) TrackInfrastructure(name, infraType, status, details string, healthy bool) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name:    name,
		Type:    infraType,
		Status:  status,
		Details: details,
		Healthy: healthy,
	})
}

// TrackSetting records an effective setting.
func (s *Summary) TrackSetting(name, value string) {
	s.settings = append(s.settings, SettingInfo{Name: name, Value: value})
}

// Infrastructure returns the tracked backends.
func (s *Summary) Infrastructure() []InfrastructureInfo {
	return s.infrastructure
}

// DisplaySummary writes the bootstrap summary to w.
func (s *Summary) DisplaySummary(w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	fmt.Fprintf(w, "📊 Infrastructure\n")
	if len(s.infrastructure) == 0 {
		fmt.Fprintf(w, "   └── Nothing configured\n")
	}
	for i, inf := range s.infrastructure {
		prefix := "├──"
		if i == len(s.infrastructure)-1 {
			prefix = "└──"
		}
		fmt.Fprintf(w, "   %s %s %s [%s]: %s\n", prefix, statusIcon(inf.Status, inf.Healthy), inf.Name, inf.Type, inf.Details)
	}

	if len(s.settings) > 0 {
		fmt.Fprintf(w, "\n⚙️  Pipeline\n")
		for i, st := range s.settings {
			prefix := "├──"
			if i == len(s.settings)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(w, "   %s %s: %s\n", prefix, st.Name, st.Value)
		}
	}

	healthy := 0
	for _, inf := range s.infrastructure {
		if inf.Healthy {
			healthy++
		}
	}
	if total := len(s.infrastructure); total > 0 {
		fmt.Fprintf(w, "\n")
		if healthy == total {
			fmt.Fprintf(w, "✅ All backends ready (%d/%d)\n", healthy, total)
		} else {
			fmt.Fprintf(w, "⚠️  Some backends have issues (%d/%d ready)\n", healthy, total)
		}
	}
	fmt.Fprintf(w, "\n")
}

func statusIcon(status string, healthy bool) string {
	if !healthy {
		return "❌"
	}
	switch status {
	case "active", "initialized", "connected", "healthy":
		return "✅"
	case "lazy":
		return "⚡"
	case "inactive", "disabled":
		return "⏸️"
	case "error", "failed":
		return "❌"
	default:
		return "⚠️"
	}
}
