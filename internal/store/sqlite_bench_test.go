package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Performance Benchmarks - Record Store
// =============================================================================
// Targets:
// - GetRecord: < 1ms per call
// - GetRecords (batch): < 10ms for 100 records; hydration runs batches of ~500
// - SaveRecords: > 1000 records/sec
// - GetAllEmbeddings: < 100ms for 1000 records (exact-scan fallback path)
// =============================================================================

// BenchmarkSQLiteStore_GetRecord benchmarks single record retrieval.
func BenchmarkSQLiteStore_GetRecord(b *testing.B) {
	store, cleanup := setupBenchmarkRecordStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		recordID := fmt.Sprintf("record-%d", i%1000)
		_, err := store.GetRecord(ctx, recordID)
		if err != nil {
			b.Fatalf("GetRecord failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_GetRecord_Sequential benchmarks N sequential GetRecord calls.
// This establishes the baseline for comparison with batch retrieval.
func BenchmarkSQLiteStore_GetRecord_Sequential(b *testing.B) {
	counts := []int{10, 20, 50, 100}

	for _, count := range counts {
		b.Run(fmt.Sprintf("count_%d", count), func(b *testing.B) {
			store, cleanup := setupBenchmarkRecordStore(b, 1000)
			defer cleanup()

			ctx := context.Background()
			ids := make([]string, count)
			for i := 0; i < count; i++ {
				ids[i] = fmt.Sprintf("record-%d", i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				for _, id := range ids {
					_, err := store.GetRecord(ctx, id)
					if err != nil {
						b.Fatalf("GetRecord failed: %v", err)
					}
				}
			}

			// Report operations per second
			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "records/sec")
		})
	}
}

// BenchmarkSQLiteStore_GetRecords_Batch benchmarks batch record retrieval.
// This is the hydration path - compare with GetRecord_Sequential.
func BenchmarkSQLiteStore_GetRecords_Batch(b *testing.B) {
	counts := []int{10, 20, 50, 100, 500}

	for _, count := range counts {
		b.Run(fmt.Sprintf("count_%d", count), func(b *testing.B) {
			store, cleanup := setupBenchmarkRecordStore(b, 1000)
			defer cleanup()

			ctx := context.Background()
			ids := make([]string, count)
			for i := 0; i < count; i++ {
				ids[i] = fmt.Sprintf("record-%d", i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				_, err := store.GetRecords(ctx, ids)
				if err != nil {
					b.Fatalf("GetRecords failed: %v", err)
				}
			}

			// Report records per second
			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "records/sec")
		})
	}
}

// BenchmarkSQLiteStore_SaveRecords benchmarks batch record insertion.
func BenchmarkSQLiteStore_SaveRecords(b *testing.B) {
	batchSizes := []int{10, 50, 100, 500, 1000}

	for _, batchSize := range batchSizes {
		b.Run(fmt.Sprintf("batch_%d", batchSize), func(b *testing.B) {
			store, cleanup := setupBenchmarkRecordStore(b, 0) // Start empty
			defer cleanup()

			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				records := generateBenchmarkRecords(batchSize, i)
				err := store.SaveRecords(ctx, records)
				if err != nil {
					b.Fatalf("SaveRecords failed: %v", err)
				}
			}

			// Report records per second
			b.ReportMetric(float64(batchSize*b.N)/b.Elapsed().Seconds(), "records/sec")
		})
	}
}

// BenchmarkSQLiteStore_GetContacts benchmarks contact enrichment for a sample.
func BenchmarkSQLiteStore_GetContacts(b *testing.B) {
	store, cleanup := setupBenchmarkRecordStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	// Sample enrichment covers the top 10 results
	ids := make([]string, 10)
	for i := 0; i < 10; i++ {
		ids[i] = fmt.Sprintf("record-%d", i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.GetContacts(ctx, ids)
		if err != nil {
			b.Fatalf("GetContacts failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_GetAllEmbeddings benchmarks the exact-scan load path.
func BenchmarkSQLiteStore_GetAllEmbeddings(b *testing.B) {
	store, cleanup := setupBenchmarkRecordStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	// Embed every record
	ids := make([]string, 1000)
	embeddings := make([][]float32, 1000)
	for i := 0; i < 1000; i++ {
		ids[i] = fmt.Sprintf("record-%d", i)
		vec := make([]float32, 1536)
		for j := range vec {
			vec[j] = float32(i+j) / 1536.0
		}
		embeddings[i] = vec
	}
	if err := store.SaveEmbeddings(ctx, ids, embeddings, "bench-model"); err != nil {
		b.Fatalf("SaveEmbeddings failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.GetAllEmbeddings(ctx)
		if err != nil {
			b.Fatalf("GetAllEmbeddings failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_Concurrent benchmarks concurrent read access.
func BenchmarkSQLiteStore_Concurrent(b *testing.B) {
	store, cleanup := setupBenchmarkRecordStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			recordID := fmt.Sprintf("record-%d", i%1000)
			_, err := store.GetRecord(ctx, recordID)
			if err != nil {
				b.Fatalf("GetRecord failed: %v", err)
			}
			i++
		}
	})
}

// =============================================================================
// Benchmark Helpers
// =============================================================================

// setupBenchmarkRecordStore creates a SQLite store with pre-populated records.
func setupBenchmarkRecordStore(b *testing.B, numRecords int) (*SQLiteStore, func()) {
	b.Helper()

	// Create temporary directory
	tmpDir, err := os.MkdirTemp("", "bench-records-*")
	if err != nil {
		b.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "records.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		b.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()

	if numRecords > 0 {
		records := generateBenchmarkRecords(numRecords, 0)
		if err := store.SaveRecords(ctx, records); err != nil {
			_ = store.Close()
			_ = os.RemoveAll(tmpDir)
			b.Fatalf("failed to save records: %v", err)
		}

		// Give half the records contact data
		contacts := make([]*Contact, 0, numRecords/2)
		for i := 0; i < numRecords; i += 2 {
			contacts = append(contacts, &Contact{
				RecordID: fmt.Sprintf("record-%d", i),
				Name:     fmt.Sprintf("PI %d", i),
				Email:    fmt.Sprintf("pi%d@example.org", i),
			})
		}
		if err := store.SaveContacts(ctx, contacts); err != nil {
			_ = store.Close()
			_ = os.RemoveAll(tmpDir)
			b.Fatalf("failed to save contacts: %v", err)
		}
	}

	return store, func() {
		_ = store.Close()
		_ = os.RemoveAll(tmpDir)
	}
}

// generateBenchmarkRecords creates records for store benchmarks.
func generateBenchmarkRecords(n int, iteration int) []*Record {
	categories := []string{"agbio", "biotools", "diagnostics", "therapeutics", "medtech"}
	orgTypes := []string{"company", "university", "nonprofit"}
	states := []string{"CA", "MA", "TX", "MD", "WA"}

	records := make([]*Record, n)
	for i := 0; i < n; i++ {
		records[i] = &Record{
			ID:               fmt.Sprintf("record-%d", iteration*n+i),
			ProjectID:        fmt.Sprintf("P%05d", i%500),
			Title:            fmt.Sprintf("Benchmark grant %d for high-throughput screening", i),
			Abstract:         generateAbstract(800 + i%400),
			Terms:            "screening\nhigh throughput\nassay development",
			Category:         categories[i%len(categories)],
			Confidence:       0.80 + float64(i%20)/100.0,
			OrgName:          fmt.Sprintf("Org %d", i%200),
			OrgType:          orgTypes[i%len(orgTypes)],
			State:            states[i%len(states)],
			FundingUSD:       float64(150_000 + i*1_000),
			Year:             2018 + i%7,
			PatentCount:      i % 4,
			PublicationCount: i % 9,
			TrialCount:       i % 3,
		}
	}
	return records
}

// generateAbstract creates abstract text of a given size.
func generateAbstract(size int) string {
	template := "This project develops a scalable screening platform for candidate " +
		"compounds, combining automated liquid handling with machine-scored imaging " +
		"readouts to shorten the discovery cycle. "
	content := ""
	for len(content) < size {
		content += template
	}
	if len(content) > size {
		content = content[:size]
	}
	return content
}
