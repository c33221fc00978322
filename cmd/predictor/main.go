package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/database"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/logger"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/metrics"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/model"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/pipeline"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/publish"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/queue"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/timer"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/pkg/config"
)

const scheduledTaskID = "food-risk-prediction"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Failed runs are logged by the pipeline itself
		var runErr *pipeline.RunError
		if !errors.As(err, &runErr) {
			log.Error().Err(err).Msg("predictor failed")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "predictor",
		Short:         "Predict food spoilage risk from the latest fridge sensor reading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newScheduleCmd(), newMigrateCmd(), newWatchCmd())
	return root
}

// loadConfig loads and validates configuration, then sets up logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildJob loads the model once and wires the pipeline's collaborators
func buildJob(ctx context.Context, cfg *config.Config) (*pipeline.Job, *publish.Fanout, error) {
	loc, err := cfg.Job.Location()
	if err != nil {
		return nil, nil, err
	}

	handle, err := model.Load(cfg.Model.ClassifierPath, cfg.Model.EncoderPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model: %w", err)
	}
	log.Info().
		Str("classifier", cfg.Model.ClassifierPath).
		Strs("labels", handle.Labels()).
		Msg("model loaded")

	publisher, err := publish.FromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up publishers: %w", err)
	}

	job := pipeline.NewJob(
		pipeline.DatabaseConnector(cfg.Database.Driver, cfg.Database.ConnectionString()),
		handle,
		pipeline.Options{
			Location:     loc,
			GasThreshold: cfg.Job.GasThreshold,
			Timeout:      cfg.Job.RunTimeout,
			Publisher:    publisher,
		},
	)
	return job, publisher, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the prediction pipeline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			job, publisher, err := buildJob(ctx, cfg)
			if err != nil {
				return err
			}
			defer publisher.Close()

			_, err = job.Run(ctx)
			return err
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var immediate bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the prediction pipeline at every SCHEDULE_INTERVAL boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			job, publisher, err := buildJob(ctx, cfg)
			if err != nil {
				return err
			}
			defer publisher.Close()

			server := metrics.NewServer(cfg.Metrics.Addr)
			go metrics.Serve(server)

			scheduler := timer.NewScheduler()
			scheduler.Start()

			var scheduleNext func(at time.Time)
			scheduleNext = func(at time.Time) {
				log.Info().Time("next_run", at).Msg("next prediction run scheduled")

				callback := func() {
					// Errors are logged by the run; the next boundary is the retry
					_, _ = job.Run(ctx)
					if ctx.Err() == nil {
						scheduleNext(timer.NextRun(time.Now(), cfg.Job.Interval))
					}
				}

				if err := scheduler.Schedule(scheduledTaskID, at, callback); err != nil {
					log.Warn().Err(err).Msg("could not schedule next run")
				}
			}

			first := timer.NextRun(time.Now(), cfg.Job.Interval)
			if immediate {
				first = time.Now()
			}
			scheduleNext(first)

			log.Info().
				Dur("interval", cfg.Job.Interval).
				Str("timezone", cfg.Job.Timezone).
				Int("publishers", publisher.Len()).
				Int("pending", scheduler.Pending()).
				Msg("prediction scheduler running")

			<-ctx.Done()
			log.Info().Msg("shutting down gracefully")

			if scheduler.Cancel(scheduledTaskID) {
				log.Info().Msg("cancelled pending prediction run")
			}
			scheduler.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&immediate, "immediate", false, "run once at startup instead of waiting for the first boundary")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the sensor and prediction tables (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations are written for postgres, SQL_DRIVER is %q", cfg.Database.Driver)
			}

			db, err := database.Connect(ctx, cfg.Database.Driver, cfg.Database.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			return db.RunMigrations(ctx, dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory of ordered .sql files")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log prediction events from the Kafka topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger.Setup(cfg.Logging)
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS is not set")
			}

			consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPredictions, group)
			defer consumer.Close()

			log.Info().Str("topic", cfg.Kafka.TopicPredictions).Msg("watching prediction events")

			for {
				msg, err := consumer.Consume(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Warn().Err(err).Msg("failed to consume message")
					continue
				}

				event, err := protocol.DecodePredictionEvent(msg.Value)
				if err != nil {
					log.Warn().Err(err).Int64("offset", msg.Offset).Msg("failed to decode event")
				} else {
					log.Info().
						Str("run_id", event.RunID).
						Str("predicted_risk", event.PredictedRisk).
						Time("timestamp", event.Timestamp).
						Float64("temperature", event.Temperature).
						Float64("humidity", event.Humidity).
						Int64("gas", event.Gas).
						Msg("prediction event")
				}

				if err := consumer.Commit(ctx, msg); err != nil {
					log.Warn().Err(err).Msg("failed to commit offset")
				}
			}
		},
	}

	cmd.Flags().StringVar(&group, "group", "predictor-watch", "Kafka consumer group")
	return cmd
}
