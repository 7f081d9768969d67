package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/auth"
	"github.com/ukydev/bridge-traffic-sim/internal/config"
	"github.com/ukydev/bridge-traffic-sim/internal/db"
	"github.com/ukydev/bridge-traffic-sim/internal/handlers"
	"github.com/ukydev/bridge-traffic-sim/internal/messaging"
	"github.com/ukydev/bridge-traffic-sim/internal/middleware"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/simulation"
)

// memoryBroker selects the in-process bus instead of an MQTT connection.
const memoryBroker = "memory"

const shutdownTimeout = 5 * time.Second

// messenger is the transport the simulation talks to the controller through.
type messenger interface {
	messaging.Publisher
	Subscribe(topic string, slot *messaging.Slot) error
	Close() error
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		log.WithError(err).Fatal("Failed to load settings")
	}
	config.SetupLogging(settings.LogLevel, settings.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings); err != nil {
		log.WithError(err).Fatal("Simulator stopped")
	}
	log.Info("Simulator stopped")
}

func run(ctx context.Context, settings config.Settings) error {
	topology, err := config.LoadTopology(settings.TopologyFile)
	if err != nil {
		return err
	}
	world, err := topology.BuildWorld()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	commands := new(messaging.Slot)

	msgr, err := newMessenger(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := msgr.Close(); err != nil {
			log.WithError(err).Warn("Failed to close messenger")
		}
	}()
	if err := msgr.Subscribe(models.TopicLights, commands); err != nil {
		return err
	}

	var (
		publisher messaging.Publisher = msgr
		events    db.EventCollection
		operators db.OperatorCollection = db.NewMemoryOperatorCollection()
	)
	if settings.MongoURI != "" {
		client, err := db.ConnectMongo(ctx, settings.MongoURI)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		}()
		database := client.Database(settings.MongoDB)

		journal := &db.MongoEventCollection{Collection: database.Collection("events")}
		if err := journal.EnsureIndexes(ctx); err != nil {
			return err
		}
		recorder := db.NewRecorder(journal, runID, db.RecorderOptions{})
		defer closeRecorder(recorder)

		publisher = messaging.Tee{msgr, recorder}
		events = journal
		operators = &db.MongoOperatorCollection{Collection: database.Collection("operators")}
		log.WithFields(log.Fields{"database": settings.MongoDB, "run_id": runID}).Info("Journalling controller traffic to MongoDB")
	}

	authService := auth.NewService(settings.JWTSecret, settings.JWTExpiry)
	if err := seedOperator(ctx, operators, authService, settings); err != nil {
		return err
	}

	sim, err := simulation.New(world, publisher, commands, simulation.Options{
		TickRate:         settings.TickRate,
		Seed:             settings.Seed,
		HeartbeatSeconds: settings.HeartbeatSeconds,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: settings.HTTPAddr,
		Handler: handlers.NewRouter(
			handlers.NewAuthHandler(authService, operators),
			handlers.NewAPIHandler(sim, commands, events, runID),
			middleware.NewAuthMiddleware(authService),
			middleware.NewRateLimitMiddleware(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		log.WithField("addr", settings.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown")
		}
	}()

	log.WithFields(log.Fields{
		"run_id":    runID,
		"broker":    settings.MQTTBroker,
		"topology":  settings.TopologyFile,
		"tick_rate": settings.TickRate,
		"seed":      settings.Seed,
	}).Info("Starting simulation")

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newMessenger(settings config.Settings) (messenger, error) {
	if settings.MQTTBroker == memoryBroker {
		log.Info("Using in-memory message bus")
		return messaging.NewBus(), nil
	}
	return messaging.Dial(messaging.Config{
		Broker:   settings.MQTTBroker,
		ClientID: settings.MQTTClientID,
	})
}

// seedOperator makes sure the configured operator account exists. A plain
// password is validated and hashed; without any credential nothing is seeded.
func seedOperator(ctx context.Context, operators db.OperatorCollection, authService *auth.Service, settings config.Settings) error {
	hash := settings.OperatorPassHash
	if hash == "" && settings.OperatorPassword != "" {
		if err := authService.ValidatePassword(settings.OperatorPassword); err != nil {
			return fmt.Errorf("operator password: %w", err)
		}
		var err error
		if hash, err = authService.HashPassword(settings.OperatorPassword); err != nil {
			return err
		}
	}
	if hash == "" {
		log.Warn("No operator credentials configured, the HTTP API only serves /health")
		return nil
	}

	now := time.Now()
	op := models.Operator{
		Username:     settings.OperatorUsername,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := operators.UpsertOperator(ctx, op); err != nil {
		return fmt.Errorf("seed operator %q: %w", op.Username, err)
	}
	log.WithField("username", op.Username).Info("Operator account ready")
	return nil
}

func closeRecorder(r *db.Recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		log.WithError(err).Warn("Journal did not drain before shutdown")
	}
	log.WithFields(log.Fields{"written": r.Written(), "dropped": r.Dropped()}).Info("Journal closed")
}
