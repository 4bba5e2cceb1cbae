package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/vfrank66/lucas-download/internal/metrics"
)

func TestLimiter_Wait(t *testing.T) {
	metrics.Init()
	l := New(Config{
		DefaultRPS:   10, // 10 requests per second = 100ms interval
		DefaultBurst: 1,
	})

	ctx := context.Background()
	url := "https://imagem.camara.gov.br/Imagem/d/pdf/DCD19960110.PDF"

	// First call should be immediate
	start := time.Now()
	if err := l.Wait(ctx, url); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	// Burst 1 means we start with 1 token; the next one should wait ~100ms.
	start = time.Now()
	if err := l.Wait(ctx, url); err != nil {
		t.Fatal(err)
	}
	dur := time.Since(start)
	if dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	metrics.Init()
	l := New(Config{
		DefaultRPS:   1, // 1 RPS = 1s interval
		DefaultBurst: 1,
	})

	ctx := context.Background()

	// Calendar host
	if err := l.Wait(ctx, "https://imagem.camara.leg.br/pesquisa_diario_basica.asp"); err != nil {
		t.Fatal(err)
	}

	// The document host should not be blocked by the calendar host
	start := time.Now()
	if err := l.Wait(ctx, "https://imagem.camara.gov.br/Imagem/d/pdf/DCD19960110.PDF"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("document host blocked unexpectedly")
	}
}

func TestLimiter_CanceledContext(t *testing.T) {
	metrics.Init()
	l := New(Config{
		DefaultRPS:   1,
		DefaultBurst: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx, "https://imagem.camara.gov.br/a"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://imagem.camara.gov.br/a"); err == nil {
		t.Fatal("expected error once context is canceled")
	}
}
