// Package handlers implements the HTTP endpoints of the render service.
package handlers

import (
	"context"

	"motion/internal/pkg/logger"
	"motion/internal/ports"
	"motion/internal/render/job"
)

// Version is reported by the status endpoint.
const Version = "0.1.0"

// Coordinator is the job runner the render endpoint hands requests to.
type Coordinator interface {
	Run(ctx context.Context, req job.Request) (*job.Result, error)
}

type Deps struct {
	Coordinator Coordinator
	Store       ports.ObjectStore
	// ExposeStacks enables stack traces in 500 bodies; off in production.
	ExposeStacks bool
	Log          *logger.Logger
}

type Handler struct {
	coordinator  Coordinator
	store        ports.ObjectStore
	exposeStacks bool
	log          *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		coordinator:  d.Coordinator,
		store:        d.Store,
		exposeStacks: d.ExposeStacks,
		log:          log.WithComponent("http"),
	}
}
