// Package dataset is the read side of the clustering output, used by the
// presenter.
package dataset

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/IshaanNene/NewsLens/internal/cluster"
	"github.com/IshaanNene/NewsLens/internal/storage"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Cluster summarizes one cluster of the current dataset.
type Cluster struct {
	ID         int                       `json:"id"`
	Label      string                    `json:"label"`
	Keywords   []string                  `json:"keywords"`
	Size       int                       `json:"size"`
	Categories map[string]int            `json:"categories"`
	Newspapers map[string]int            `json:"newspapers"`
	Articles   []*types.ClusteredArticle `json:"articles,omitempty"`
}

// Snapshot is the current clustering output as seen by the presenter.
type Snapshot struct {
	Generation  string                    `json:"generation"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	Articles    []*types.ClusteredArticle `json:"-"`
	Keywords    cluster.Keywords          `json:"-"`
	HasKeywords bool                      `json:"has_keywords"`
}

// LoadCurrent reads the committed generation under dir. It returns
// types.ErrNoData when no clustering run has completed yet. A missing
// keyword index is tolerated; clusters are then labeled by id only.
func LoadCurrent(dir string) (*Snapshot, error) {
	gens := storage.NewGenerations(dir, slog.New(slog.DiscardHandler))
	genDir, err := gens.Current()
	if err != nil {
		return nil, err
	}

	dataPath := filepath.Join(genDir, cluster.DatasetFile)
	articles, err := storage.ReadClustered(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.ErrNoData
		}
		return nil, err
	}

	snap := &Snapshot{
		Generation: filepath.Base(genDir),
		Articles:   articles,
		Keywords:   cluster.Keywords{},
	}
	if info, err := os.Stat(dataPath); err == nil {
		snap.UpdatedAt = info.ModTime()
	}

	kw, err := cluster.ReadKeywords(filepath.Join(genDir, cluster.KeywordsFile))
	switch {
	case err == nil:
		snap.Keywords = kw
		snap.HasKeywords = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return snap, nil
}

// Label returns the display label of a cluster.
func (s *Snapshot) Label(id int) string {
	if terms := s.Keywords[id]; len(terms) > 0 {
		return s.Keywords.Label(id)
	}
	return "Cluster " + strconv.Itoa(id)
}

// Filter narrows the articles shown per cluster. Empty fields match all.
type Filter struct {
	Newspapers []string
	Categories []string
}

func (f Filter) match(a *types.ClusteredArticle) bool {
	return matchAny(f.Newspapers, a.Newspaper) && matchAny(f.Categories, a.Category)
}

func matchAny(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Clusters groups the snapshot by cluster id, in id order. With
// withArticles false only the aggregates are filled in.
func (s *Snapshot) Clusters(f Filter, withArticles bool) []Cluster {
	byID := make(map[int]*Cluster)
	for _, a := range s.Articles {
		if !f.match(a) {
			continue
		}
		c, ok := byID[a.Cluster]
		if !ok {
			c = &Cluster{
				ID:         a.Cluster,
				Label:      s.Label(a.Cluster),
				Keywords:   s.Keywords[a.Cluster],
				Categories: map[string]int{},
				Newspapers: map[string]int{},
			}
			byID[a.Cluster] = c
		}
		c.Size++
		c.Categories[a.Category]++
		c.Newspapers[a.Newspaper]++
		if withArticles {
			c.Articles = append(c.Articles, a)
		}
	}

	out := make([]Cluster, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
