package server_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/insight/core"
	"github.com/mohammad-safakhou/brandlens/internal/insight/providers"
	"github.com/mohammad-safakhou/brandlens/internal/queue/streams"
	"github.com/mohammad-safakhou/brandlens/internal/server"
	"github.com/mohammad-safakhou/brandlens/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestAggregatePersistsAndMirrorsFacts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("brandlens"),
		tcPostgres.WithUsername("brandlens"),
		tcPostgres.WithPassword("brandlens"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()
	pgHost, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	pgPort, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()
	redisHost, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	redisPort, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://brandlens:brandlens@%s:%s/brandlens?sslmode=disable", pgHost, pgPort.Port())
	if err := server.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, store.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	ws, err := st.CreateWorkspace(ctx, store.Workspace{BrandName: "Acme", Domain: "acme.com"})
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	defer func() { _ = rdb.Close() }()
	const stream = "brandlens:facts:test"
	consumer := streams.NewConsumer(rdb, "it", "reader")
	if err := consumer.EnsureGroup(ctx, stream, "0"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	similarweb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"visits":[{"date":"2026-01-01","visits":7000},{"date":"2026-02-01","visits":5000}]}`))
	}))
	defer similarweb.Close()

	set := providers.NewSet(config.ProvidersConfig{
		SimilarWeb: config.SimilarWebConfig{APIKey: "k", Endpoint: similarweb.URL, Timeout: 2 * time.Second},
	}, zerolog.Nop(), providers.Options{HTTPClient: similarweb.Client()})
	reg, err := set.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	log := zerolog.Nop()
	sink := core.NewMultiSink(log,
		core.NamedSink{Name: "sql", Sink: core.Guard("sql", st, log)},
		core.NamedSink{Name: "stream", Sink: streams.NewFactMirror(streams.NewPublisher(rdb), stream, 100)},
	)
	o, err := core.New(core.Options{Registry: reg, Resolver: set.Resolver(log), Workspaces: st, Sink: sink, Logger: log})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}

	if _, err := o.Aggregate(ctx, insight.Request{Brand: "Acme", Domain: "acme.com"}); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := o.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	facts, err := st.ListFacts(ctx, ws.ID, 10)
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	if len(facts) != 1 || facts[0].Summary != "12,000 total visits" {
		t.Fatalf("unexpected facts %+v", facts)
	}

	msgs, err := consumer.Read(ctx, stream, streams.WithCount(10), streams.WithBlock(time.Second))
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Envelope.WorkspaceID != ws.ID {
		t.Fatalf("unexpected stream entries %+v", msgs)
	}
}
