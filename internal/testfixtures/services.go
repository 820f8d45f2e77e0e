package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
)

// TokenSecret signs the access tokens issued by factory built services.
const TokenSecret = "testfixtures-secret"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Sink        events.Sink
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory anchored at ReferenceTime.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(ReferenceTime()),
		IDGenerator: NewIDGenerator("booking"),
		Sink:        events.Nop{},
		Location:    time.UTC,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(ReferenceTime())
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("booking")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithSink routes audit events to sink.
func WithSink(sink events.Sink) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Sink = sink
	}
}

// Services bundles every application service over one store.
type Services struct {
	Bookings   *application.BookingService
	Catalog    *application.CatalogService
	Reconciler *application.Reconciler
	Reports    *application.ReportService
	Auth       *application.AuthService
	Tokens     *application.TokenIssuer
}

// NewServices wires the full service set to store.
func (f *ServiceFactory) NewServices(store persistence.Store) Services {
	tokens := f.NewTokenIssuer()
	reports := application.NewReportServiceWithLogger(store, time.Nanosecond, f.Clock.NowFunc(), f.Logger)
	deps := f.bookingDeps(store)
	deps.Reports = reports
	return Services{
		Bookings:   application.NewBookingService(deps),
		Catalog:    f.NewCatalogService(store),
		Reconciler: f.NewReconciler(store),
		Reports:    reports,
		Auth:       f.NewAuthService(store, tokens),
		Tokens:     tokens,
	}
}

// NewBookingService builds a lifecycle manager with the factory clock and ids.
func (f *ServiceFactory) NewBookingService(store persistence.Store) *application.BookingService {
	return application.NewBookingService(f.bookingDeps(store))
}

func (f *ServiceFactory) bookingDeps(store persistence.Store) application.BookingServiceDeps {
	return application.BookingServiceDeps{
		Bookings:    store,
		Catalog:     store,
		Audit:       store,
		Sink:        f.Sink,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      f.Logger,
	}
}

// NewCatalogService builds a catalog service planning slots in f.Location.
func (f *ServiceFactory) NewCatalogService(store persistence.Store) *application.CatalogService {
	return application.NewCatalogService(application.CatalogServiceDeps{
		Catalog:  store,
		Audit:    store,
		Sink:     f.Sink,
		Location: f.Location,
		Now:      f.Clock.NowFunc(),
		Logger:   f.Logger,
	})
}

// NewReconciler builds a reconciler with the default grace period.
func (f *ServiceFactory) NewReconciler(store persistence.Store) *application.Reconciler {
	return application.NewReconciler(application.ReconcilerDeps{
		Bookings: store,
		Audit:    store,
		Sink:     f.Sink,
		Now:      f.Clock.NowFunc(),
		Logger:   f.Logger,
	})
}

// NewTokenIssuer returns an issuer signing with TokenSecret on the factory clock.
func (f *ServiceFactory) NewTokenIssuer() *application.TokenIssuer {
	tokens, err := application.NewTokenIssuer([]byte(TokenSecret), time.Hour, f.Clock.NowFunc())
	if err != nil {
		panic(err)
	}
	return tokens
}

// NewAuthService builds an auth service. Passwords are stored with a
// reversible "plain:" prefix so fixtures stay fast.
func (f *ServiceFactory) NewAuthService(store persistence.Store, tokens *application.TokenIssuer) *application.AuthService {
	return application.NewAuthService(application.AuthServiceDeps{
		Users:  store,
		Audit:  store,
		Sink:   f.Sink,
		Tokens: tokens,
		Hash:   PlainPasswordHash,
		Verify: PlainPasswordVerify,
		Now:    f.Clock.NowFunc(),
		Logger: f.Logger,
	})
}

// PlainPasswordHash is a fast stand-in for the argon2id hasher.
func PlainPasswordHash(password string) (string, error) {
	return "plain:" + password, nil
}

// PlainPasswordVerify checks hashes produced by PlainPasswordHash.
func PlainPasswordVerify(hashed, password string) error {
	if hashed != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}
