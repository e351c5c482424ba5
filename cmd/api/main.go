package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/support"
	"github.com/ariefcatur/go-storefront/internal/wallet"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("schema applied")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024)
	prod.Start(ctx)

	svc := &orders.Service{
		Store:        &orders.PgStore{DB: db},
		Gateway:      &payment.Simulated{DeclineCardsEndingIn: cfg.DeclineCards},
		Events:       &orders.KafkaPublisher{Producer: prod},
		ShippingFee:  cfg.ShippingFee,
		ReturnWindow: cfg.ReturnWindow,
		ServiceName:  cfg.ServiceName,
	}
	sessions := &auth.Sessions{Redis: rdb, Secret: []byte(cfg.SessionSecret), TTL: cfg.SessionTTL}
	m := metrics.New()

	catalogRepo := &catalog.Repo{DB: db}
	router := httpx.NewRouter(sessions, m)
	(&httpx.AuthHandler{
		Users:        &auth.Repo{DB: db},
		Sessions:     sessions,
		TTL:          cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	}).Register(router)
	(&httpx.CatalogHandler{Catalog: catalogRepo}).Register(router)
	(&httpx.CartHandler{
		Cart:   &cart.Repo{DB: db},
		Wallet: &wallet.Repo{DB: db},
	}).Register(router)
	(&httpx.OrdersHandler{
		Orders:  svc,
		Reader:  &orders.Repo{DB: db},
		Cache:   &redisx.StatusCache{Redis: rdb},
		Guard:   &redisx.CheckoutGuard{Redis: rdb},
		Metrics: m,
		Timeout: cfg.CheckoutTimeout,
	}).Register(router)
	(&httpx.SupportHandler{Tickets: &support.Repo{DB: db}}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
