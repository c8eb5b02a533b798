// Package e2e exercises the full engine against a generated corpus.
package e2e

import (
	"fmt"

	"github.com/hyperjump/kioku/internal/models"
)

// QueryCase pairs a query with the document id that must appear in results.
type QueryCase struct {
	Query      string
	ExpectedID string
	Filter     map[string]any
}

// Corpus holds generated documents and query cases against them.
type Corpus struct {
	Documents []*models.DocumentInput
	Cases     []QueryCase
}

// BuildCorpus generates n documents across a fixed set of topics. Each
// document carries a unique signature phrase so queries can assert that the
// right document comes back, plus topic and shard metadata for filter cases.
func BuildCorpus(n int) *Corpus {
	topics := []struct {
		name   string
		phrase string
		body   string
	}{
		{"databases", "relational query planner", "Relational databases execute declarative queries through a query planner that picks join orders and index scans."},
		{"containers", "container image layers", "Container images are built from stacked layers so unchanged layers are shared between builds and hosts."},
		{"networking", "congestion control window", "Transport protocols adjust a congestion control window to probe available bandwidth without collapsing the path."},
		{"compilers", "register allocation pass", "Optimizing compilers run a register allocation pass late, mapping virtual registers onto the machine's limited set."},
		{"storage", "log structured merge", "Log structured merge trees absorb writes in memory and compact sorted runs on disk in the background."},
		{"crypto", "public key exchange", "Public key exchange lets two parties agree on a shared secret over an untrusted channel."},
	}
	c := &Corpus{}
	for i := 0; i < n; i++ {
		topic := topics[i%len(topics)]
		// The signature token is unique per document so it cannot rank
		// documents that only share corpus-wide boilerplate.
		signature := fmt.Sprintf("%s zq%03dx", topic.phrase, i)
		c.Documents = append(c.Documents, &models.DocumentInput{
			ID:      fmt.Sprintf("doc-%03d", i),
			Content: fmt.Sprintf("%s %s", signature, topic.body),
			Metadata: map[string]any{
				"topic": topic.name,
				"shard": i % 4,
			},
		})
	}
	// One query case per topic, targeting the first document of that topic.
	for i, topic := range topics {
		if i >= n {
			break
		}
		c.Cases = append(c.Cases, QueryCase{
			Query:      fmt.Sprintf("%s zq%03dx", topic.phrase, i),
			ExpectedID: fmt.Sprintf("doc-%03d", i),
		})
		c.Cases = append(c.Cases, QueryCase{
			Query:      topic.phrase,
			ExpectedID: fmt.Sprintf("doc-%03d", i),
			Filter:     map[string]any{"topic": topic.name, "shard": i % 4},
		})
	}
	return c
}
