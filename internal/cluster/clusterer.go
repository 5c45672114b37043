// Package cluster groups articles into topical clusters: TF-IDF vectors,
// seeded k-means, a 2D PCA projection and per-cluster keywords.
package cluster

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/storage"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Output file names inside a generation directory.
const (
	DatasetFile  = "clustered_news.csv"
	KeywordsFile = "cluster_keywords.txt"
)

// Result is the outcome of one clustering pass.
type Result struct {
	Articles []*types.ClusteredArticle
	Keywords Keywords
	Vocab    int
	Dir      string
}

// Clusterer runs the clustering stage and publishes its output.
type Clusterer struct {
	cfg     config.ClusteringConfig
	gens    *storage.Generations
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Clusterer writing generations under dir.
func New(cfg config.ClusteringConfig, dir string, metrics *observability.Metrics, logger *slog.Logger) *Clusterer {
	logger = logger.With("component", "clusterer")
	return &Clusterer{
		cfg:     cfg,
		gens:    storage.NewGenerations(dir, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// Generations exposes the output generations for readers.
func (c *Clusterer) Generations() *storage.Generations { return c.gens }

// Compute clusters the articles without writing anything.
func (c *Clusterer) Compute(articles []*types.Article) (*Result, error) {
	if len(articles) < c.cfg.K {
		return nil, fmt.Errorf("%d records for k=%d: %w", len(articles), c.cfg.K, types.ErrTooFewRecords)
	}

	docs := make([]string, len(articles))
	for i, a := range articles {
		docs[i] = documentText(a, c.cfg.TextField)
	}

	vec := NewVectorizer(c.cfg.MaxFeatures)
	x, err := vec.FitTransform(docs)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}

	km := &KMeans{
		K:         c.cfg.K,
		Seed:      c.cfg.Seed,
		MaxIter:   c.cfg.MaxIter,
		Tolerance: c.cfg.Tolerance,
		NInit:     c.cfg.NInit,
	}
	model, err := km.Fit(x)
	if err != nil {
		return nil, fmt.Errorf("k-means: %w", err)
	}

	coords, err := Project2D(x)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	out := make([]*types.ClusteredArticle, len(articles))
	for i, a := range articles {
		out[i] = &types.ClusteredArticle{
			Article: *a,
			Cluster: model.Labels[i],
			X:       coords.At(i, 0),
			Y:       coords.At(i, 1),
		}
	}

	c.logger.Debug("clustering computed",
		"records", len(articles),
		"vocabulary", len(vec.Vocabulary),
		"clusters", model.Clusters(),
		"iterations", model.Iter,
		"inertia", model.Inertia,
	)

	return &Result{
		Articles: out,
		Keywords: TopTerms(model.Centroids, vec.Vocabulary, c.cfg.TopTerms),
		Vocab:    len(vec.Vocabulary),
	}, nil
}

// Run clusters the articles and publishes the dataset and keyword index as
// one new generation. On any failure the previous generation stays current.
func (c *Clusterer) Run(articles []*types.Article) (*Result, error) {
	start := time.Now()

	res, err := c.Compute(articles)
	if err != nil {
		return nil, err
	}

	gen, err := c.gens.Begin()
	if err != nil {
		return nil, err
	}
	if err := storage.WriteClustered(gen.Path(DatasetFile), res.Articles); err != nil {
		gen.Abort()
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	err = storage.WriteFileAtomic(gen.Path(KeywordsFile), func(w io.Writer) error {
		return WriteKeywords(w, res.Keywords)
	})
	if err != nil {
		gen.Abort()
		return nil, fmt.Errorf("write keywords: %w", err)
	}
	if err := gen.Commit(); err != nil {
		return nil, err
	}

	if dir, err := c.gens.Current(); err == nil {
		res.Dir = dir
	}
	if err := c.gens.Prune(c.cfg.KeepGenerations); err != nil {
		c.logger.Warn("pruning old generations failed", "error", err)
	}

	c.metrics.ClustersProduced.Set(float64(len(res.Keywords)))
	c.logger.Info("clustering complete",
		"records", len(res.Articles),
		"clusters", len(res.Keywords),
		"duration", time.Since(start),
	)
	return res, nil
}

func documentText(a *types.Article, field string) string {
	switch field {
	case "title":
		return a.Title
	case "title+category":
		return a.Title + " " + a.Category
	default:
		return a.Category
	}
}
