package controllers

import (
	"github.com/TimoLindner/WaxCrate/internal/pkg/billing"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/webhookqueue"
)

// Package-level services wired once at startup. Tests inject fakes through
// Setup instead of hitting the real store.
var (
	reconciler *billing.Service
	evaluator  *entitlements.Service
	store      entitlements.Repository
	retryQueue *webhookqueue.Queue
)

// Setup wires the controller dependencies.
func Setup(rec *billing.Service, eval *entitlements.Service, repo entitlements.Repository, queue *webhookqueue.Queue) {
	reconciler = rec
	evaluator = eval
	store = repo
	retryQueue = queue
}
