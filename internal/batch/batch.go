// Package batch partitions a domain sequence into fixed-size chunks.
package batch

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/Normaleshok/domain-checker/internal/config"
	"github.com/Normaleshok/domain-checker/internal/domain"
)

// Split cuts domains into contiguous batches of size; the last one may be
// shorter. Batches share the backing array of domains.
func Split(domains []domain.Domain, size int) ([]domain.Batch, error) {
	if size < 1 {
		return nil, &config.InvalidConfigError{
			Problems: []string{fmt.Sprintf("batch size must be >= 1, got %d", size)},
		}
	}
	chunks := lo.Chunk(domains, size)
	out := make([]domain.Batch, len(chunks))
	for i, c := range chunks {
		out[i] = domain.Batch{Index: i, Domains: c}
	}
	return out, nil
}
