package cluster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// Keywords maps a cluster id to its terms, most relevant first.
type Keywords map[int][]string

// IDs returns the cluster ids in ascending order.
func (k Keywords) IDs() []int {
	ids := make([]int, 0, len(k))
	for id := range k {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Label returns the comma-joined terms of a cluster.
func (k Keywords) Label(id int) string {
	return strings.Join(k[id], ", ")
}

// TopTerms returns, for each centroid row, up to n vocabulary terms with a
// positive weight, heaviest first. Equal weights keep vocabulary order.
func TopTerms(centroids *mat.Dense, vocab []string, n int) Keywords {
	k, d := centroids.Dims()
	out := make(Keywords, k)
	idx := make([]int, d)
	for c := range k {
		row := centroids.RawRowView(c)
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })

		terms := make([]string, 0, n)
		for _, j := range idx {
			if len(terms) == n || row[j] <= 0 {
				break
			}
			terms = append(terms, vocab[j])
		}
		out[c] = terms
	}
	return out
}

// WriteKeywords writes one "Cluster <id>: <terms>" line per cluster in id
// order.
func WriteKeywords(w io.Writer, kw Keywords) error {
	bw := bufio.NewWriter(w)
	for _, id := range kw.IDs() {
		if _, err := fmt.Fprintf(bw, "Cluster %d: %s\n", id, kw.Label(id)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseKeywords reads the keyword index format written by WriteKeywords.
// Lines that do not match are ignored.
func ParseKeywords(r io.Reader) (Keywords, error) {
	kw := make(Keywords)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		head, terms, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		idText, ok := strings.CutPrefix(head, "Cluster ")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil {
			continue
		}
		var list []string
		for _, t := range strings.Split(terms, ",") {
			if t = strings.TrimSpace(t); t != "" {
				list = append(list, t)
			}
		}
		kw[id] = list
	}
	return kw, sc.Err()
}

// ReadKeywords reads a keyword index file.
func ReadKeywords(path string) (Keywords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: err}
	}
	defer f.Close()
	kw, err := ParseKeywords(f)
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: err}
	}
	return kw, nil
}
