// Package corpus builds TF-IDF embeddings over the stored complaints and
// searches them by cosine similarity.
package corpus

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the persistence the index reads the corpus from.
type Store interface {
	CorpusDocuments(ctx context.Context) ([]storage.CorpusDocument, error)
	SimilarityCandidates(ctx context.Context, exclude []models.Status, excludeID string) ([]storage.Candidate, error)
	MissingEmbeddings(ctx context.Context, limit int) ([]storage.CorpusDocument, error)
	SaveEmbedding(ctx context.Context, complaintID string, vec []float32) (bool, error)
}

// Options tunes the index. Zero values fall back to the package defaults.
type Options struct {
	TTL           time.Duration
	VocabSize     int
	ColdStartDims int
	Threshold     float64
	TopK          int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = config.IDFCacheTTL
	}
	if o.VocabSize <= 0 {
		o.VocabSize = config.VocabularySize
	}
	if o.ColdStartDims <= 0 {
		o.ColdStartDims = config.ColdStartDimension
	}
	if o.Threshold <= 0 {
		o.Threshold = config.SimilarityThreshold
	}
	if o.TopK <= 0 {
		o.TopK = config.SimilarityTopK
	}
	return o
}

// Match is a stored complaint similar to a query vector.
type Match struct {
	ComplaintID string  `json:"complaintId"`
	Department  string  `json:"department"`
	Heading     string  `json:"heading"`
	Excerpt     string  `json:"excerpt"`
	Similarity  float64 `json:"similarity"`
}

// NotSimilarStatuses are never returned by FindSimilar: their complaints
// have not been accepted by the analysis step.
var NotSimilarStatuses = []models.Status{models.StatusSubmitted, models.StatusAIReview, models.StatusAIRejected}

// snapshot is immutable once published.
type snapshot struct {
	idf     map[string]float64
	vocab   []string
	docs    int
	builtAt time.Time
}

// Index caches the IDF table and swaps it atomically on rebuild.
type Index struct {
	store   Store
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

func NewIndex(store Store, opts Options, log *zap.Logger, m *metrics.Metrics) *Index {
	return &Index{
		store:   store,
		opts:    opts.withDefaults(),
		log:     logger.OrNop(log).Named("corpus"),
		metrics: m,
		now:     time.Now,
	}
}

// VocabularySize reports the size of the current vocabulary (0 = cold start).
func (x *Index) VocabularySize(ctx context.Context) int {
	return len(x.snapshot(ctx).vocab)
}

func (x *Index) fresh(s *snapshot) bool {
	return s != nil && x.now().Sub(s.builtAt) < x.opts.TTL
}

func (x *Index) snapshot(ctx context.Context) *snapshot {
	if s := x.current.Load(); x.fresh(s) {
		return s
	}
	v, err, _ := x.group.Do("idf", func() (interface{}, error) {
		if s := x.current.Load(); x.fresh(s) {
			return s, nil
		}
		s, err := x.rebuild(ctx)
		if err != nil {
			return nil, err
		}
		x.current.Store(s)
		return s, nil
	})
	if err != nil {
		x.log.Warn("IDF rebuild failed, using previous snapshot", zap.Error(err))
		if s := x.current.Load(); s != nil {
			return s
		}
		return &snapshot{}
	}
	return v.(*snapshot)
}

func (x *Index) rebuild(ctx context.Context) (*snapshot, error) {
	start := time.Now()
	docs, err := x.store.CorpusDocuments(ctx)
	if err != nil {
		return nil, err
	}

	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(d.Heading + " " + d.Description + " " + d.Department) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((n+1)/(float64(count)+1)) + 1
	}

	vocab := make([]string, 0, len(idf))
	for term := range idf {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if idf[vocab[i]] != idf[vocab[j]] {
			return idf[vocab[i]] > idf[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > x.opts.VocabSize {
		vocab = vocab[:x.opts.VocabSize]
	}

	x.metrics.CorpusRebuild(time.Since(start))
	x.log.Debug("IDF snapshot rebuilt", zap.Int("documents", len(docs)), zap.Int("vocabulary", len(vocab)))
	return &snapshot{idf: idf, vocab: vocab, docs: len(docs), builtAt: x.now()}, nil
}

// Embed returns the normalized TF-IDF vector of text over the current
// vocabulary, or the hashed cold-start vector while the vocabulary is empty.
func (x *Index) Embed(ctx context.Context, text string) []float64 {
	s := x.snapshot(ctx)
	if len(s.vocab) == 0 {
		return HashVector(text, x.opts.ColdStartDims)
	}

	tokens := Tokenize(text)
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	total := float64(len(tokens))
	if total == 0 {
		total = 1
	}

	vec := make([]float64, len(s.vocab))
	for i, term := range s.vocab {
		if c := counts[term]; c > 0 {
			vec[i] = float64(c) / total * s.idf[term]
		}
	}
	return normalize(vec)
}

// FindSimilar returns at most TopK stored complaints whose embedding scores
// at least Threshold against query, best first.
func (x *Index) FindSimilar(ctx context.Context, query []float64, excludeID string) ([]Match, error) {
	candidates, err := x.store.SimilarityCandidates(ctx, NotSimilarStatuses, excludeID)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		score := Cosine(query, ToFloat64(c.Embedding))
		if score < x.opts.Threshold {
			continue
		}
		matches = append(matches, Match{
			ComplaintID: c.ComplaintID,
			Department:  c.Department,
			Heading:     c.Heading,
			Excerpt:     excerpt(c.Description, config.ExcerptLength),
			Similarity:  score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > x.opts.TopK {
		matches = matches[:x.opts.TopK]
	}
	return matches, nil
}

// Save persists vec for a complaint unless one is already stored.
func (x *Index) Save(ctx context.Context, complaintID string, vec []float64) (bool, error) {
	return x.store.SaveEmbedding(ctx, complaintID, ToFloat32(vec))
}

// Backfill embeds up to batchSize complaints that have no vector yet and
// returns how many were stored. Failures on single records are logged.
func (x *Index) Backfill(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = config.BackfillBatchSize
	}
	docs, err := x.store.MissingEmbeddings(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	stored := 0
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		vec := x.Embed(ctx, d.Department+" "+d.Heading+" "+d.Description)
		ok, err := x.Save(ctx, d.ComplaintID, vec)
		if err != nil {
			x.log.Warn("backfill embedding failed", zap.String("complaint_id", d.ComplaintID), zap.Error(err))
			continue
		}
		if ok {
			stored++
		}
	}
	if len(docs) > 0 {
		x.log.Info("embedding backfill batch done", zap.Int("candidates", len(docs)), zap.Int("stored", stored))
	}
	return stored, nil
}

// BackfillAll repeats Backfill until a batch stores nothing.
func (x *Index) BackfillAll(ctx context.Context, batchSize int) (int, error) {
	total := 0
	for {
		n, err := x.Backfill(ctx, batchSize)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
