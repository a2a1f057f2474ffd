// Package health runs periodic liveness checks over the service's
// dependencies and exposes the results over HTTP.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Component is one health-checked dependency.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check probes one component.
type Check func() (Status, string, error)

// Checker manages health checks for the service.
type Checker struct {
	checks      map[string]Check
	components  map[string]*Component
	critical    map[string]bool
	checkPeriod time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
}

func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	checker := &Checker{
		checks:      make(map[string]Check),
		components:  make(map[string]*Component),
		critical:    make(map[string]bool),
		checkPeriod: checkPeriod,
		log:         log,
	}
	checker.RegisterCheck("self", false, func() (Status, string, error) {
		return StatusUp, "health checker is running", nil
	})
	return checker
}

// RegisterCheck registers a check. Critical components gate the overall
// HTTP status; non-critical ones are reported but never fail the probe.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.critical[name] = critical
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "not checked yet",
	}
}

// RunChecks executes all registered checks once.
func (c *Checker) RunChecks() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for name, check := range c.checks {
		status, description, err := check()

		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()

		if err != nil {
			component.Error = err.Error()
			c.log.Warn("health check failed", "component", name, "error", err)
		} else {
			component.Error = ""
		}
	}
}

// Start begins periodic checks, running one immediately.
func (c *Checker) Start() {
	go func() {
		c.RunChecks()

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()
		for range ticker.C {
			c.RunChecks()
		}
	}()
}

// GetStatus returns a copy of the current component states.
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}
	return result
}

// IsSystemHealthy reports whether every critical component is up.
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for name, component := range c.components {
		if c.critical[name] && component.Status == StatusDown {
			return false
		}
	}
	return true
}

// Handler serves the health report. Unhealthy returns 503.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		code := http.StatusOK
		status := "ok"
		if !c.IsSystemHealthy() {
			code = http.StatusServiceUnavailable
			status = "unhealthy"
		}
		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now(),
			"components": c.GetStatus(),
		})
	}
}

// RegisterRedisCheck probes the auth-state store. The store is critical:
// without it login state cannot be persisted.
func (c *Checker) RegisterRedisCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("redis", true, func() (Status, string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			return StatusDown, "auth store unreachable", err
		}
		return StatusUp, "auth store reachable", nil
	})
}

// RegisterArchiveCheck probes the optional archive database.
func (c *Checker) RegisterArchiveCheck(ping func() error) {
	c.RegisterCheck("archive", false, func() (Status, string, error) {
		if err := ping(); err != nil {
			return StatusDegraded, "archive unreachable, events will not be recorded", err
		}
		return StatusUp, "archive reachable", nil
	})
}

// RegisterRelayCheck reports the remote connection state. A relay in
// error state is degraded, not down: the reconnect loop is still
// driving recovery.
func (c *Checker) RegisterRelayCheck(status func() models.ConnectionStatus) {
	c.RegisterCheck("relay", false, func() (Status, string, error) {
		s := status()
		switch s.State {
		case models.StateConnected:
			return StatusUp, "remote stream connected", nil
		case models.StateConnecting:
			return StatusDegraded, "remote stream connecting", nil
		case models.StateError:
			return StatusDegraded, "remote stream lost, reconnecting", nil
		default:
			return StatusUp, "remote stream disconnected by choice", nil
		}
	})
}
