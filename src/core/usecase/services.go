package usecase

import (
	"log/slog"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// Services bundles the engine's use cases over one repository and clock.
type Services struct {
	Competitions  *CompetitionService
	Entries       *EntryService
	Qualification *QualificationService
	Reconcile     *ReconcileService
	Payments      *PaymentService
	AdminAuth     *AdminAuthService
	Health        *HealthService
}

// NewServices wires every service. Each gets a logger tagged with its component.
func NewServices(repo ports.ContestRepository, clock ports.Clock, policy domain.EntryPolicy, adminToken string, log *slog.Logger) *Services {
	component := func(name string) *slog.Logger { return log.With("component", name) }

	qualification := NewQualificationService(repo, clock, component("qualification"))
	return &Services{
		Competitions:  NewCompetitionService(repo, clock, component("competition")),
		Entries:       NewEntryService(repo, clock, policy, component("entry")),
		Qualification: qualification,
		Reconcile:     NewReconcileService(repo, qualification, clock, component("reconcile")),
		Payments:      NewPaymentService(repo, clock, component("payment")),
		AdminAuth:     NewAdminAuthService(adminToken),
		Health: NewHealthService(component("health"), map[string]ports.ExternalService{
			"storage": repo,
		}),
	}
}
