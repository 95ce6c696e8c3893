package store

import "testing"

func TestPostgresConfigDSN(t *testing.T) {
	config := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "callpulse",
		Username: "svc",
		Password: "secret",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 dbname=callpulse user=svc password=secret sslmode=require"
	if got := config.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
