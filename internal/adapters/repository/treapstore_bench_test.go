package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/goalpulse/internal/domain/model"
)

func seededStore(b *testing.B, n int) *TreapStore {
	b.Helper()
	ctx := context.Background()
	store := NewTreapStore()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		_ = store.Upsert(ctx, fmt.Sprintf("fixture-%d", i), rng.Float64()*100, model.TierLow, t0)
	}
	return store
}

func BenchmarkTreapStore_Upsert(b *testing.B) {
	ctx := context.Background()
	store := seededStore(b, 500)
	rng := rand.New(rand.NewSource(2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Upsert(ctx, fmt.Sprintf("fixture-%d", i%500), rng.Float64()*100, model.TierMedium, t0)
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := seededStore(b, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Rank(ctx, fmt.Sprintf("fixture-%d", i%500))
	}
}

func BenchmarkTreapStore_TopN(b *testing.B) {
	ctx := context.Background()
	store := seededStore(b, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.TopN(ctx, 25)
	}
}
