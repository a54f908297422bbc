package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
)

func BenchmarkEvaluate(b *testing.B) {
	queries := []struct {
		name string
		node query.Node
	}{
		{"term", query.Term{Name: "alpha"}},
		{"or", query.NewOr(query.Term{Name: "alpha"}, query.Term{Name: "beta"}, query.Term{Name: "gamma"})},
		{"and", query.NewAnd(query.Term{Name: "alpha"}, query.Term{Name: "beta"})},
		{"and_not", query.NewAndNot(query.Term{Name: "alpha"}, query.Term{Name: "beta"})},
		{"phrase", query.Phrase{Terms: []string{"alpha", "beta"}}},
		{"boosted", query.NewAndMaybe(query.Term{Name: "alpha"}, query.PostingSource{Source: postingsource.Wrap(1)})},
	}
	for _, size := range []int{1000, 10000} {
		store := testutil.OpenDatabase(b, testutil.RandomDocs(size, 42))
		exec, err := New(store, DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
		for _, q := range queries {
			b.Run(fmt.Sprintf("%s/docs_%d", q.name, size), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := exec.Evaluate(context.Background(), q.node, 0, 10); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkEvaluateParallel(b *testing.B) {
	exec, err := New(testutil.OpenDatabase(b, testutil.RandomDocs(5000, 7)), DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	node := query.NewOr(query.Term{Name: "alpha"}, query.Term{Name: "delta"})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Evaluate(context.Background(), node, 0, 10); err != nil {
				b.Fatal(err)
			}
		}
	})
}
