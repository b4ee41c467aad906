package app

import (
	"context"
	"fmt"
	"os"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check reports each collaborator. A missing parser is fatal to every
// operation and marks the service down; anything else only degrades it.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	degrade := func() {
		if status.Status == "up" {
			status.Status = "degraded"
		}
	}

	if s.app.Parser != nil {
		status.Components["parser"] = fmt.Sprintf("ok (%d extensions)", len(s.app.Parser.SupportedExtensions()))
	} else {
		status.Status = "down"
		status.Components["parser"] = "missing"
	}

	if s.app.Compiler != nil {
		status.Components["compiler"] = "ok"
	} else {
		degrade()
		status.Components["compiler"] = "missing; type checks and npm builds unavailable"
	}

	switch {
	case s.app.Manifest == nil:
		status.Components["manifest"] = "not configured"
	case s.app.Paths.Manifest != "":
		if _, err := os.Stat(s.app.Paths.Manifest); err != nil {
			degrade()
			status.Components["manifest"] = "unreadable: " + err.Error()
		} else {
			status.Components["manifest"] = "ok"
		}
	default:
		status.Components["manifest"] = "ok"
	}

	if s.app.History != nil {
		if _, err := s.app.History.Recent(ctx, 1); err != nil {
			degrade()
			status.Components["history"] = "error: " + err.Error()
		} else {
			status.Components["history"] = "ok"
		}
	} else {
		status.Components["history"] = "disabled"
	}

	status.Components["strip_cache"] = fmt.Sprintf("%d entries", s.app.CacheLen())
	return status
}
