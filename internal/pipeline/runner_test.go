package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/model"
)

type sliceSource []model.Speaker

func (s sliceSource) List(context.Context) ([]model.Speaker, error) {
	out := make([]model.Speaker, len(s))
	copy(out, s)
	return out, nil
}

type failingSource struct{}

func (failingSource) List(context.Context) ([]model.Speaker, error) {
	return nil, errors.New("speakers directory missing")
}

type passEnricher struct{}

func (passEnricher) EnrichBatch(_ context.Context, speakers []model.Speaker) ([]model.Speaker, error) {
	out := make([]model.Speaker, len(speakers))
	for i, s := range speakers {
		s = s.Clone()
		s.ApplyEnrichment(model.Enrichment{
			SpeakerName:   s.Name,
			SearchResults: []model.SearchResult{{Title: s.Company}},
		})
		out[i] = s
	}
	return out, nil
}

// companyClassifier maps company names to categories and counts calls per
// identity. onCall runs before each classification.
type companyClassifier struct {
	mu      sync.Mutex
	byCo    map[string]model.Category
	calls   map[string]int
	onCall  func(n int)
	total   int
	failFor map[string]bool
}

func newCompanyClassifier(byCo map[string]model.Category) *companyClassifier {
	return &companyClassifier{byCo: byCo, calls: make(map[string]int)}
}

func (c *companyClassifier) Classify(_ context.Context, s model.Speaker) model.Classification {
	c.mu.Lock()
	c.total++
	n := c.total
	c.calls[s.Key()]++
	c.mu.Unlock()

	if c.onCall != nil {
		c.onCall(n)
	}
	if c.failFor[s.Company] {
		return model.FailedClassification(errors.New("llm down"))
	}
	cat, ok := c.byCo[s.Company]
	if !ok {
		return model.Classification{Category: model.CategoryOther, Reasoning: "unknown", Confidence: 0.4}
	}
	return model.Classification{Category: cat, Reasoning: "mapped", Confidence: 0.9}
}

type recordingGenerator struct {
	mu     sync.Mutex
	seen   map[string]int
	fail   map[string]bool
	onCall func(n int)
	total  int
}

func newRecordingGenerator() *recordingGenerator {
	return &recordingGenerator{seen: make(map[string]int), fail: make(map[string]bool)}
}

func (g *recordingGenerator) Generate(_ context.Context, s model.Speaker) model.EmailDraft {
	g.mu.Lock()
	g.total++
	n := g.total
	g.seen[s.Key()]++
	g.mu.Unlock()

	if g.onCall != nil {
		g.onCall(n)
	}
	if g.fail[s.Key()] {
		return model.EmailDraft{}
	}
	return model.EmailDraft{Subject: "Hello " + s.Name, Body: "Visit booth #42, " + s.Company}
}

func (g *recordingGenerator) count(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[key]
}

func speakers(n int) []model.Speaker {
	out := make([]model.Speaker, n)
	for i := range out {
		out[i] = model.Speaker{Name: fmt.Sprintf("Speaker %02d", i), Company: fmt.Sprintf("Co %d", i%4)}
	}
	return out
}

var coCategories = map[string]model.Category{
	"Co 0": model.CategoryBuilder,
	"Co 1": model.CategoryOwner,
	"Co 2": model.CategoryPartner,
	"Co 3": model.CategoryCompetitor,
}

func testOptions() Options {
	o := DefaultOptions()
	o.ClassifyConcurrency = 1
	o.GenerateConcurrency = 1
	return o
}

func newTestRunner(src sliceSource, c Classifier, g Generator, stores Stores, opts Options) *Runner {
	return NewRunner(src, passEnricher{}, c, g, stores, opts, WithLogger(zap.NewNop()))
}

func keysOf(list []model.Speaker) map[string]int {
	m := make(map[string]int)
	for _, s := range list {
		m[s.Key()]++
	}
	return m
}

func TestClassify_AllRecordsOnceWithCategory(t *testing.T) {
	src := sliceSource(speakers(25))
	stores := MemoryStores()
	c := newCompanyClassifier(coCategories)

	results, err := newTestRunner(src, c, nil, stores, testOptions()).Classify(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 25)

	for key, n := range keysOf(results) {
		assert.Equal(t, 1, n, key)
	}
	for _, s := range results {
		assert.True(t, s.Category.Valid(), "category %q", s.Category)
		assert.NotEmpty(t, s.SearchResults, "enrichment merged")
	}
	assert.Equal(t, model.CategoryBuilder, results[0].Category)

	out, ok, err := stores.Classified.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out, 25)

	state, ok, err := stores.ClassifyCheckpoint.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Results, 25)
	assert.Len(t, state.Processed, 25)
	assert.NotEmpty(t, state.RunID)
	assert.Equal(t, 3, stores.ClassifyCheckpoint.(*checkpoint.MemoryStore[checkpoint.ClassifyState]).Saves(),
		"one checkpoint per chunk of 10")
}

func TestClassify_DuplicateIdentitiesProcessedOnce(t *testing.T) {
	src := sliceSource{
		{Name: "Jane", Company: "Acme", Bio: "first"},
		{Name: "Jane", Company: "Acme", Bio: "second"},
		{Name: "Jane", Company: "Other Co"},
	}
	c := newCompanyClassifier(nil)

	results, err := newTestRunner(src, c, nil, MemoryStores(), testOptions()).Classify(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Bio)
	assert.Equal(t, 1, c.calls["Jane|Acme"])
}

func TestClassify_SeparatorInNamesKeepsIdentitiesDistinct(t *testing.T) {
	src := sliceSource{
		{Name: "Lee|Ann", Company: "Acme", JobTitle: "CEO"},
		{Name: "Lee", Company: "Ann|Acme", JobTitle: "CTO"},
	}
	stores := MemoryStores()
	c := newCompanyClassifier(map[string]model.Category{
		"Acme":     model.CategoryBuilder,
		"Ann|Acme": model.CategoryOwner,
	})
	g := newRecordingGenerator()
	runner := newTestRunner(src, c, g, stores, testOptions())

	results, err := runner.Classify(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, c.total)

	state, _, err := stores.ClassifyCheckpoint.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, state.ProcessedSet(), 2)

	again, err := runner.Classify(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 2, c.total, "resume makes no new calls")

	all, err := runner.Generate(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, g.total)
	for _, s := range all {
		assert.Equal(t, "Hello "+s.Name, s.EmailSubject)
	}
}

func TestClassify_ResumeIsIdempotent(t *testing.T) {
	src := sliceSource(speakers(12))
	stores := MemoryStores()

	first, err := newTestRunner(src, newCompanyClassifier(coCategories), nil, stores, testOptions()).Classify(context.Background(), true)
	require.NoError(t, err)

	c := newCompanyClassifier(coCategories)
	second, err := newTestRunner(src, c, nil, stores, testOptions()).Classify(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 0, c.total, "nothing left to classify")
	assert.Equal(t, first, second)

	out, ok, err := stores.Classified.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "output still written when already complete")
	assert.Len(t, out, 12)
}

func TestClassify_ResumeIgnoresProcessedList(t *testing.T) {
	stores := MemoryStores()
	ctx := context.Background()
	require.NoError(t, stores.ClassifyCheckpoint.Save(ctx, checkpoint.ClassifyState{
		Results:   []model.Speaker{{Name: "Speaker 00", Company: "Co 0", Category: model.CategoryBuilder}},
		Processed: []string{"Speaker 00|Co 0", "Speaker 01|Co 1"},
	}))

	c := newCompanyClassifier(coCategories)
	results, err := newTestRunner(sliceSource(speakers(2)), c, nil, stores, testOptions()).Classify(ctx, true)
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.Equal(t, 1, c.calls["Speaker 01|Co 1"], "identity only in the processed list is still classified")
	assert.Equal(t, 0, c.calls["Speaker 00|Co 0"])
}

func TestClassify_NoResumeStartsOver(t *testing.T) {
	stores := MemoryStores()
	ctx := context.Background()
	require.NoError(t, stores.ClassifyCheckpoint.Save(ctx, checkpoint.ClassifyState{
		Results: []model.Speaker{{Name: "Speaker 00", Company: "Co 0", Category: model.CategoryOther}},
	}))

	c := newCompanyClassifier(coCategories)
	results, err := newTestRunner(sliceSource(speakers(3)), c, nil, stores, testOptions()).Classify(ctx, false)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, 3, c.total)
	assert.Equal(t, model.CategoryBuilder, results[0].Category)
}

func TestClassify_CancelLosesAtMostOneChunk(t *testing.T) {
	src := sliceSource(speakers(30))
	stores := MemoryStores()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCompanyClassifier(coCategories)
	c.onCall = func(n int) {
		if n == 15 {
			cancel()
		}
	}

	_, err := newTestRunner(src, c, nil, stores, testOptions()).Classify(ctx, false)
	require.ErrorIs(t, err, context.Canceled)

	state, ok, err := stores.ClassifyCheckpoint.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Results, 10, "only the first chunk is durable")
	for _, s := range state.Results {
		assert.NotContains(t, s.ClassificationReasoning, "context canceled")
	}

	_, ok, err = stores.Classified.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "no output on an aborted run")

	resumed := newCompanyClassifier(coCategories)
	results, err := newTestRunner(src, resumed, nil, stores, testOptions()).Classify(context.Background(), true)
	require.NoError(t, err)

	assert.Len(t, results, 30)
	assert.Equal(t, 20, resumed.total)
	for key, n := range keysOf(results) {
		assert.Equal(t, 1, n, key)
	}
}

func TestClassify_DegradedRecordsStillCounted(t *testing.T) {
	c := newCompanyClassifier(coCategories)
	c.failFor = map[string]bool{"Co 2": true}

	results, err := newTestRunner(sliceSource(speakers(4)), c, nil, MemoryStores(), testOptions()).Classify(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, model.CategoryOther, results[2].Category)
	assert.Equal(t, 0.0, results[2].ClassificationConfidence)
	assert.Equal(t, "Classification failed: llm down", results[2].ClassificationReasoning)
}

func TestClassify_CheckpointWriteFailureAborts(t *testing.T) {
	stores := MemoryStores()
	stores.ClassifyCheckpoint.(*checkpoint.MemoryStore[checkpoint.ClassifyState]).FailOn = 2

	_, err := newTestRunner(sliceSource(speakers(25)), newCompanyClassifier(nil), nil, stores, testOptions()).Classify(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrInjected)
}

func TestClassify_SourceFailureIsFatal(t *testing.T) {
	r := NewRunner(failingSource{}, passEnricher{}, newCompanyClassifier(nil), nil, MemoryStores(), testOptions(), WithLogger(zap.NewNop()))
	_, err := r.Classify(context.Background(), false)
	assert.Error(t, err)
}

func classifiedStores(t *testing.T, list []model.Speaker) Stores {
	t.Helper()
	stores := MemoryStores()
	require.NoError(t, stores.Classified.Save(context.Background(), list))
	return stores
}

func classifiedList() []model.Speaker {
	return []model.Speaker{
		{Name: "Bea", Company: "Build Co", Category: model.CategoryBuilder},
		{Name: "Oli", Company: "Own Co", Category: model.CategoryOwner},
		{Name: "Pat", Company: "Partner Co", Category: model.CategoryPartner},
		{Name: "Cam", Company: "Rival Co", Category: model.CategoryCompetitor},
		{Name: "Cus", Company: "Client Co", Category: model.CategoryCustomer},
		{Name: "Oth", Company: "Misc Co", Category: model.CategoryOther},
		{Name: "Bob", Company: "Build Co", Category: model.CategoryBuilder},
	}
}

func TestGenerate_MissingStage1(t *testing.T) {
	r := newTestRunner(nil, nil, newRecordingGenerator(), MemoryStores(), testOptions())
	_, err := r.Generate(context.Background(), false)
	assert.ErrorIs(t, err, ErrStage1Missing)
}

func TestGenerate_OnlyEligibleReachGenerator(t *testing.T) {
	stores := classifiedStores(t, classifiedList())
	g := newRecordingGenerator()

	results, err := newTestRunner(nil, nil, g, stores, testOptions()).Generate(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 7)

	assert.Equal(t, 3, g.total)
	for _, s := range results {
		eligible := s.Category == model.CategoryBuilder || s.Category == model.CategoryOwner
		if eligible {
			assert.Equal(t, 1, g.count(s.Key()), s.Key())
			assert.NotEmpty(t, s.EmailSubject, s.Key())
		} else {
			assert.Equal(t, 0, g.count(s.Key()), s.Key())
			assert.Empty(t, s.EmailSubject, s.Key())
			assert.Empty(t, s.EmailBody, s.Key())
		}
	}

	out, ok, err := stores.WithEmails.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, results, out)
}

func TestGenerate_EligibilityFromOptions(t *testing.T) {
	stores := classifiedStores(t, classifiedList())
	g := newRecordingGenerator()
	opts := testOptions()
	opts.Eligible = map[model.Category]bool{model.CategoryCustomer: true}

	_, err := newTestRunner(nil, nil, g, stores, opts).Generate(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, g.total)
	assert.Equal(t, 1, g.count("Cus|Client Co"))
}

func TestGenerate_FailedAttemptsRecordedAndNotRetried(t *testing.T) {
	stores := classifiedStores(t, classifiedList())
	g := newRecordingGenerator()
	g.fail["Oli|Own Co"] = true

	results, err := newTestRunner(nil, nil, g, stores, testOptions()).Generate(context.Background(), false)
	require.NoError(t, err)

	for _, s := range results {
		if s.Key() == "Oli|Own Co" {
			assert.Empty(t, s.EmailSubject)
		}
	}

	state, ok, err := stores.GenerateCheckpoint.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	draft, present := state.Emails["Oli|Own Co"]
	assert.True(t, present, "failed attempt has a side-map entry")
	assert.True(t, draft.IsEmpty())

	again := newRecordingGenerator()
	_, err = newTestRunner(nil, nil, again, stores, testOptions()).Generate(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, again.total)
}

func TestGenerate_ResumeReplaysSideMap(t *testing.T) {
	list := classifiedList()
	stores := classifiedStores(t, list)
	ctx := context.Background()
	require.NoError(t, stores.GenerateCheckpoint.Save(ctx, checkpoint.GenerateState{
		Emails: map[string]model.EmailDraft{
			"Bea|Build Co": {Subject: "Earlier subject", Body: "Earlier body"},
		},
		Processed: []string{"Bea|Build Co", "Oli|Own Co"},
	}))

	g := newRecordingGenerator()
	results, err := newTestRunner(nil, nil, g, stores, testOptions()).Generate(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, 0, g.count("Bea|Build Co"))
	assert.Equal(t, 1, g.count("Oli|Own Co"), "processed list is not authoritative")
	assert.Equal(t, "Earlier subject", results[0].EmailSubject)
	assert.Equal(t, "Earlier body", results[0].EmailBody)
}

func TestGenerate_CancelLosesAtMostOneChunk(t *testing.T) {
	var list []model.Speaker
	for i := 0; i < 45; i++ {
		list = append(list, model.Speaker{Name: fmt.Sprintf("B%02d", i), Company: "Build Co", Category: model.CategoryBuilder})
	}
	stores := classifiedStores(t, list)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := newRecordingGenerator()
	g.onCall = func(n int) {
		if n == 25 {
			cancel()
		}
	}

	_, err := newTestRunner(nil, nil, g, stores, testOptions()).Generate(ctx, false)
	require.ErrorIs(t, err, context.Canceled)

	state, ok, err := stores.GenerateCheckpoint.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Emails, 20)

	resumed := newRecordingGenerator()
	results, err := newTestRunner(nil, nil, resumed, stores, testOptions()).Generate(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 25, resumed.total)
	for _, s := range results {
		assert.NotEmpty(t, s.EmailSubject, s.Key())
	}
}

func TestGenerate_IneligibleEmailFieldsCleared(t *testing.T) {
	list := []model.Speaker{
		{Name: "Pat", Company: "Partner Co", Category: model.CategoryPartner, EmailSubject: "stale", EmailBody: "stale"},
	}
	stores := classifiedStores(t, list)

	results, err := newTestRunner(nil, nil, newRecordingGenerator(), stores, testOptions()).Generate(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, results[0].EmailSubject)
	assert.Empty(t, results[0].EmailBody)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := model.DefaultConfig().Pipeline
	cfg.EligibleCategories = []string{"Owner", "Bogus"}

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, 10, opts.ClassifyInterval)
	assert.Equal(t, 20, opts.GenerateInterval)
	assert.Equal(t, map[model.Category]bool{model.CategoryOwner: true}, opts.Eligible)
}
