//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/urbancab/service-booking/internal/application"
	bookingDomain "github.com/urbancab/service-booking/internal/domain/booking"
	"github.com/urbancab/service-booking/internal/domain/pricing"
	bookingEvents "github.com/urbancab/service-booking/internal/events"
	"github.com/urbancab/service-booking/internal/geo"
	"github.com/urbancab/service-booking/internal/notify"
	"github.com/urbancab/service-booking/internal/payments"
	"github.com/urbancab/service-booking/internal/repository"
)

// testGatewaySecret signs and verifies test payment signatures.
const testGatewaySecret = "test_gateway_secret"

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// stubGeocoder and stubRouter keep the pipeline constructible without
// calling external providers; the payment flow never touches them.
type stubGeocoder struct{}

func (stubGeocoder) Geocode(context.Context, string) (geo.Coordinates, error) {
	return geo.Coordinates{Latitude: 12.9716, Longitude: 77.5946}, nil
}

type stubRouter struct{}

func (stubRouter) Route(_ context.Context, origin, destination geo.Coordinates) (float64, error) {
	return origin.HaversineKm(destination), nil
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.BookingModel{}, &repository.DriverModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers,
		bookingEvents.TopicBookingEvents,
		bookingEvents.TopicPaymentEvents,
		bookingEvents.TopicRealtimeUsers,
		bookingEvents.TopicRealtimeDrivers,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	driverRepo := repository.NewGormDriverRepository(db)

	coordsCache := geo.NewCache[geo.Coordinates](100)
	distanceCache := geo.NewCache[geo.DistanceResult](100)
	pipeline := geo.NewPipeline(stubGeocoder{}, stubRouter{}, coordsCache, distanceCache, logger)
	quoteSvc := application.NewQuoteService(pipeline, pricing.NewCalculator(), logger)

	producer := bookingEvents.NewProducer(brokers, logger)
	publisher := bookingEvents.NewPublisher(producer, "service-booking-test", logger)
	gateway := payments.NewClient("rzp_test_key", testGatewaySecret)

	bookingSvc := application.NewBookingService(
		bookingRepo,
		driverRepo,
		quoteSvc,
		pricing.NewDiscountEngine(),
		bookingDomain.DefaultCancellationPolicy(),
		publisher,
		gateway,
		notify.NopSender{},
		logger,
	)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Service:  bookingSvc,
		Consumer: consumer,
		CleanupProducer: func() {
			_ = producer.Close()
			coordsCache.Close()
			distanceCache.Close()
		},
	}
}

// seedConfirmedBooking inserts a confirmed outstation booking awaiting payment.
func seedConfirmedBooking(t *testing.T, db *gorm.DB, bookingID, userID uuid.UUID, finalAmount int64) {
	t.Helper()
	now := time.Now().UTC()
	start := now.Add(48 * time.Hour)

	pickup, _ := json.Marshal(bookingDomain.Location{Address: "MG Road, Bengaluru"})
	drop, _ := json.Marshal(bookingDomain.Location{Address: "Mysore Palace, Mysuru"})
	fare, _ := json.Marshal(pricing.FareBreakdown{
		VehicleType: pricing.VehicleSedan,
		BookingType: pricing.BookingOutstation,
		BaseFare:    finalAmount * 100 / 105,
		Subtotal:    finalAmount * 100 / 105,
		Tax:         finalAmount - finalAmount*100/105,
		TotalFare:   finalAmount,
		FinalAmount: finalAmount,
		ValidUntil:  now.Add(time.Hour),
	})
	trip, _ := json.Marshal(bookingDomain.TripRecord{})

	model := repository.BookingModel{
		ID:            bookingID,
		BookingNumber: fmt.Sprintf("CB-%s", uuid.New().String()[:6]),
		UserID:        userID,
		BookingType:   string(pricing.BookingOutstation),
		Status:        string(bookingDomain.StatusConfirmed),
		Pickup:        pickup,
		Drop:          drop,
		StartDateTime: start,
		VehicleType:   string(pricing.VehicleSedan),
		Fare:          fare,
		Trip:          trip,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType, key string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := bookingEvents.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := bookingEvents.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, key, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBooking polls the bookings table until check passes.
func waitForBooking(t *testing.T, db *gorm.DB, bookingID uuid.UUID, check func(repository.BookingModel) bool, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if check(model) {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not reach expected state")
	return result
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
