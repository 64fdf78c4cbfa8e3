// Package module wires the reports service and exposes its ports
package module

import (
	"storewatch/internal/modkit"
	"storewatch/internal/modkit/httpkit"

	reportshttp "storewatch/internal/services/reports/http"
	"storewatch/internal/services/reports/service"
)

// Module defines the reports module
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// New constructs the reports module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	// Load defaults, then apply non-zero overrides
	opts := FromConfig(deps.Cfg)

	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.QueueTakeBatch != 0 {
		opts.QueueTakeBatch = overrides.QueueTakeBatch
	}
	if overrides.PollEvery != 0 {
		opts.PollEvery = overrides.PollEvery
	}
	if overrides.LeaseFor != 0 {
		opts.LeaseFor = overrides.LeaseFor
	}
	if overrides.SoftDeadline != 0 {
		opts.SoftDeadline = overrides.SoftDeadline
	}
	if overrides.HardDeadline != 0 {
		opts.HardDeadline = overrides.HardDeadline
	}
	if overrides.RetryBase != 0 {
		opts.RetryBase = overrides.RetryBase
	}
	if overrides.DataDir != "" {
		opts.DataDir = overrides.DataDir
	}
	if overrides.WorkerID != "" {
		opts.WorkerID = overrides.WorkerID
	}

	svc := service.New(deps, service.Config{
		Concurrency:    opts.Concurrency,
		QueueTakeBatch: opts.QueueTakeBatch,
		PollEvery:      opts.PollEvery,
		LeaseFor:       opts.LeaseFor,
		SoftDeadline:   opts.SoftDeadline,
		HardDeadline:   opts.HardDeadline,
		RetryBase:      opts.RetryBase,
		DataDir:        opts.DataDir,
		WorkerID:       opts.WorkerID,
	})

	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{
		Trigger: svc,
		Status:  svc,
		Runner:  svc,
	}
	return m
}

// Ports returns the module ports (Trigger, Status, Runner)
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "reports" }

// Prefix returns the route prefix; report endpoints live at the root
func (m *Module) Prefix() string { return "" }

// MountRoutes mounts the public report endpoints directly on the router
func (m *Module) MountRoutes(r httpkit.Router) {
	reportshttp.Register(r, reportshttp.Ports{
		Trigger:  m.svc,
		Status:   m.svc,
		Artifact: m.svc,
	})
}
