// Package app is the composition root: it bundles the wired domain services
// so transport layers and operational tooling consume one object instead of
// reaching into main.
package app

import (
	"loanflow/internal/advisory"
	"loanflow/internal/committee"
	"loanflow/internal/consent"
	"loanflow/internal/creditcheck"
	"loanflow/internal/notification"
	"loanflow/internal/workflow"
)

// App holds every wired service of the process.
type App struct {
	Workflow      *workflow.Engine
	Committee     *committee.Service
	Advisory      *advisory.Service
	Consent       *consent.Service
	CreditChecks  *creditcheck.Dispatcher
	Notifications *notification.Queue
}
