package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/api/scheduler"
	"github.com/verilens/evidence-api/chain"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/forensic"
	"github.com/verilens/evidence-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	DB        databases.CollectionHelper
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	hub := NewHub()
	forensicClient := forensic.New(a.Config.ForensicAPIURL)
	chainClient := chain.NewChainClient(a.Config.ChainRPCURL, a.Config.ChainContractAddress)
	pinClient := chain.NewPinClient(a.Config.PinningAPIURL, a.Config.PinningJWT)

	u := User{DB: databases.NewUserDatabase(a.dbHelper), Config: a.Config}
	authHandler := Auth{DB: databases.NewUserDatabase(a.dbHelper), Config: a.Config}
	e := Evidence{DB: databases.NewEvidenceDatabase(a.dbHelper), Hub: hub}
	analysis := Analysis{
		DB:       databases.NewEvidenceDatabase(a.dbHelper),
		UDB:      databases.NewUserDatabase(a.dbHelper),
		Forensic: forensicClient,
		Hub:      hub,
	}
	preserve := Preserve{
		DB:    databases.NewEvidenceDatabase(a.dbHelper),
		Chain: chainClient,
		Pin:   pinClient,
		Hub:   hub,
	}
	caseHandler := Case{DB: databases.NewCaseDatabase(a.dbHelper), EDB: databases.NewEvidenceDatabase(a.dbHelper), Hub: hub}
	stats := Stats{
		EDB: databases.NewEvidenceDatabase(a.dbHelper),
		RDB: databases.NewReportDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
	}
	report := Report{RDB: databases.NewReportDatabase(a.dbHelper), EDB: databases.NewEvidenceDatabase(a.dbHelper)}
	events := Events{Hub: hub}
	cloudinaryHandler := CloudinaryHandler{Config: a.Config}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/forgot-password", http.HandlerFunc(authHandler.ForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/user/reset-password", http.HandlerFunc(authHandler.ResetPasswordHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}/profile-image", api.Middleware(http.HandlerFunc(u.UpdateProfileImageHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	// All routes for user must go above this line

	// evidence/user routes must be registered before evidence/{evidence_id}
	apiCreate.Handle("/evidence/user/{user_id}/grouped", api.Middleware(http.HandlerFunc(e.GroupedEvidenceByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/evidence/user/{user_id}", api.Middleware(http.HandlerFunc(e.EvidenceByUserIDHandler))).Methods("GET")

	apiCreate.Handle("/evidence", api.Middleware(http.HandlerFunc(e.EvidenceCreateHandler))).Methods("POST")
	apiCreate.Handle("/evidence/{evidence_id}", api.Middleware(http.HandlerFunc(e.EvidenceUpsertHandler))).Methods("PUT")
	apiCreate.Handle("/evidence/{evidence_id}", api.Middleware(http.HandlerFunc(e.EvidenceByIDHandler))).Methods("GET")
	apiCreate.Handle("/evidence/{evidence_id}", api.Middleware(http.HandlerFunc(e.DeleteEvidenceHandler))).Methods("DELETE")
	apiCreate.Handle("/evidence/{evidence_id}/name", api.Middleware(http.HandlerFunc(e.RenameEvidenceHandler))).Methods("PATCH")

	apiCreate.Handle("/evidence/{evidence_id}/analyze", api.Middleware(http.HandlerFunc(analysis.AnalyzeEvidenceHandler))).Methods("POST")
	apiCreate.Handle("/evidence/{evidence_id}/face", api.Middleware(http.HandlerFunc(analysis.DetectFacesHandler))).Methods("POST")
	apiCreate.Handle("/evidence/{evidence_id}/forensics", api.Middleware(http.HandlerFunc(analysis.ExtractForensicsHandler))).Methods("POST")
	apiCreate.Handle("/evidence/{evidence_id}/preserve", api.Middleware(http.HandlerFunc(preserve.PreserveEvidenceHandler))).Methods("POST")

	apiCreate.Handle("/evidence/{evidence_id}/report", api.Middleware(http.HandlerFunc(report.EvidenceReportHandler))).Methods("GET")
	apiCreate.Handle("/evidence/{evidence_id}/report.pdf", api.Middleware(http.HandlerFunc(report.EvidenceReportPDFHandler))).Methods("GET")
	apiCreate.Handle("/report", api.Middleware(http.HandlerFunc(report.CreateReportHandler))).Methods("POST")

	apiCreate.Handle("/stats/user/{user_id}", api.Middleware(http.HandlerFunc(stats.StatsByUserIDHandler))).Methods("GET")

	apiCreate.Handle("/case", api.Middleware(http.HandlerFunc(caseHandler.CreateCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}", api.Middleware(http.HandlerFunc(caseHandler.DeleteCaseHandler))).Methods("DELETE")
	apiCreate.Handle("/cases", api.Middleware(http.HandlerFunc(caseHandler.CasesHandler))).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	// websocket subscribers authenticate at the application layer via scope,
	// which also serves anonymous dashboard sessions
	apiCreate.Handle("/events/{scope}", http.HandlerFunc(events.EventsHandler)).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("evidence-api has connected to the database")

	// start the background consistency sweeps
	a.Scheduler = scheduler.NewScheduler(
		databases.NewEvidenceDatabase(a.dbHelper),
		databases.NewCaseDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
