package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"edupulse/domain/core"
	"edupulse/domain/student"
	"edupulse/ports"
)

// TestKit generates deterministic synthetic student batches for demos and
// tests. All randomness flows from the seed handed to New.
type TestKit struct {
	rng *rand.Rand
}

// NewTestKit creates a kit with the given seed.
func NewTestKit(seed int64) *TestKit {
	return &TestKit{rng: rand.New(rand.NewSource(seed))}
}

// archetype shapes one band of synthetic students.
type archetype struct {
	name         string
	gradeMean    float64
	gradeSpread  float64
	attendance   float64
	behavior     float64
	intervention student.InterventionType
	outcome      float64
}

var archetypes = []archetype{
	{"thriving", 8.5, 0.8, 95, 8.5, student.InterventionStudyGroup, 8.5},
	{"average", 6.5, 1.0, 85, 7.0, student.InterventionTutoring, 7.5},
	{"struggling", 4.0, 1.2, 65, 5.0, student.InterventionCounseling, 6.0},
}

// GenerateBatch produces n students cycling through the archetypes, with
// correlated grades, attendance and behavior plus some intervention history.
func (k *TestKit) GenerateBatch(n int) []student.Record {
	records := make([]student.Record, 0, n)
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		arch := archetypes[i%len(archetypes)]

		grades := make([]float64, 6)
		for g := range grades {
			grades[g] = clampRange(arch.gradeMean+k.rng.NormFloat64()*arch.gradeSpread, 0, 10)
		}

		rec := student.Record{
			ID:            core.StudentID(fmt.Sprintf("student-%03d", i+1)),
			Grades:        grades,
			Attendance:    clampRange(arch.attendance+k.rng.NormFloat64()*5, 0, 100),
			Behavior:      clampRange(arch.behavior+k.rng.NormFloat64()*1.0, 0, 10),
			Age:           12 + k.rng.Intn(6),
			GradeLevel:    7 + k.rng.Intn(5),
			Socioeconomic: clampRange(5+k.rng.NormFloat64()*2, 0, 10),
		}

		// Two thirds of each band carry intervention history.
		if i%3 != 2 {
			rec.Interventions = []student.InterventionRecord{
				{
					Type:    arch.intervention,
					Date:    core.NewTimestamp(base.AddDate(0, 0, -k.rng.Intn(120))),
					Outcome: clampRange(arch.outcome+k.rng.NormFloat64()*0.8, 0, 10),
				},
			}
		}
		records = append(records, rec)
	}
	return records
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SequentialIDGenerator issues predictable ids so tests can assert on them.
type SequentialIDGenerator struct {
	mu       sync.Mutex
	analyses int
	patterns int
}

// NewSequentialIDGenerator creates a generator starting at 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

func (g *SequentialIDGenerator) NewAnalysisID() core.AnalysisID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyses++
	return core.AnalysisID(fmt.Sprintf("analysis-%04d", g.analyses))
}

func (g *SequentialIDGenerator) NewPatternID() core.PatternID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns++
	return core.PatternID(fmt.Sprintf("pattern-%04d", g.patterns))
}

// InMemoryProvider implements RecordProvider over a fixed batch.
type InMemoryProvider struct {
	records []student.Record
}

// NewInMemoryProvider wraps a batch in a provider.
func NewInMemoryProvider(records []student.Record) *InMemoryProvider {
	return &InMemoryProvider{records: records}
}

func (p *InMemoryProvider) Records(ctx context.Context) ([]student.Record, error) {
	return p.records, nil
}

func (p *InMemoryProvider) Record(ctx context.Context, id core.StudentID) (student.Record, error) {
	for _, rec := range p.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return student.Record{}, core.NewNotFoundError("student", id.String())
}

// InMemoryModelStore implements ModelStore in a map.
type InMemoryModelStore struct {
	mu        sync.Mutex
	snapshots map[string]ports.ModelSnapshot
}

// NewInMemoryModelStore creates an empty store.
func NewInMemoryModelStore() *InMemoryModelStore {
	return &InMemoryModelStore{snapshots: make(map[string]ports.ModelSnapshot)}
}

func (s *InMemoryModelStore) key(id core.ModelID, kind string) string {
	return id.String() + "/" + kind
}

func (s *InMemoryModelStore) Save(ctx context.Context, snapshot ports.ModelSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[s.key(snapshot.ModelID, snapshot.Kind)] = snapshot
	return nil
}

func (s *InMemoryModelStore) Load(ctx context.Context, id core.ModelID, kind string) (ports.ModelSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[s.key(id, kind)]
	if !ok {
		return ports.ModelSnapshot{}, core.NewNotFoundError("model snapshot", id.String())
	}
	return snap, nil
}
