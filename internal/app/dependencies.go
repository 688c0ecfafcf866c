package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/utils"
	"github.com/obrafin/obrafin/pkg/budget"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/plan"
	"github.com/obrafin/obrafin/pkg/receipt"
	"github.com/obrafin/obrafin/pkg/rubro"
	"github.com/obrafin/obrafin/pkg/stats"
	"github.com/obrafin/obrafin/pkg/supplier"
	"github.com/obrafin/obrafin/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus   *event_bus.EventBus
	Clock      utils.Clock
	Authorizer user.RoleAuthorizer

	UserService user.Service
	UserHandler *user.Handler

	BudgetRepo      *budget.RepositoryImpl
	BudgetDrafts    *budget.DraftStoreImpl
	BudgetPublisher *budget.PublisherImpl
	BudgetHandler   *budget.Handler

	RubroRepo    *rubro.RepositoryImpl
	RubroService *rubro.ServiceImpl
	RubroHandler *rubro.Handler

	LedgerService *ledger.ServiceImpl
	LedgerHandler *ledger.Handler

	PlanGate         *plan.GateImpl
	SupplierResolver *supplier.ResolverImpl

	Reconciler     *receipt.ReconcilerImpl
	ReceiptHandler *receipt.Handler

	StatsService     *stats.StatsServiceImpl
	CsvStatsRenderer *stats.CsvStatsRendererImpl
	StatsHandler     *stats.StatsHandler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}
	deps.Authorizer = user.RoleAuthorizer{}

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.RubroRepo = rubro.NewRepo(db)

	deps.BudgetRepo = budget.NewRepo(db)
	deps.BudgetDrafts = budget.NewDraftStore(deps.BudgetRepo, deps.Authorizer, deps.RubroRepo, deps.EventBus)
	deps.BudgetPublisher = budget.NewPublisher(deps.BudgetRepo, deps.Authorizer, deps.EventBus, deps.Clock)
	deps.BudgetHandler = budget.NewHandler(deps.BudgetDrafts, deps.BudgetPublisher)

	deps.RubroService = rubro.NewService(deps.RubroRepo, deps.BudgetDrafts, deps.Authorizer, deps.EventBus)
	deps.RubroHandler = rubro.NewHandler(deps.RubroService)

	deps.LedgerService = ledger.NewService(ledger.NewRepo(db), deps.Authorizer)
	deps.LedgerHandler = ledger.NewHandler(deps.LedgerService)

	deps.PlanGate = plan.NewGate(plan.NewRepo(db), deps.Clock)
	deps.SupplierResolver = supplier.NewResolver(supplier.NewRepo(db))

	deps.Reconciler = receipt.NewReconciler(
		receipt.NewRepo(db),
		deps.SupplierResolver,
		deps.LedgerService,
		deps.PlanGate,
		deps.Authorizer,
		deps.EventBus,
		deps.Clock,
	)
	deps.ReceiptHandler = receipt.NewHandler(deps.Reconciler)

	deps.StatsService = stats.NewStatsServiceImpl(deps.BudgetDrafts, deps.BudgetPublisher, deps.LedgerService, deps.RubroRepo)
	deps.CsvStatsRenderer = stats.NewCsvStatsRenderer()
	deps.StatsHandler = stats.NewStatsHandler(deps.StatsService, deps.CsvStatsRenderer)

	return deps
}
