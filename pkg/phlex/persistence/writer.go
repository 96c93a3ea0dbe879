package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/phlex-hep/phlex/pkg/phlex"
)

// NewWriter builds an output-node function that persists the named
// products of every store it receives. Payloads are JSON-encoded;
// CommitOutput is stamped with the store's level ID so records can be
// read back per instance.
//
// Register it like any output:
//
//	p, _ := persistence.NewSQLiteStore("products.db")
//	g.Output("write_events", persistence.NewWriter(p, "write_events", "a", "b")).
//	    InputFamily("a", "b")
func NewWriter(p Persistence, creator string, labels ...string) phlex.OutputFunc {
	return func(ctx phlex.Context, s *phlex.Store) error {
		for _, label := range labels {
			owner := s.StoreForProduct(label)
			if owner == nil {
				return fmt.Errorf("persist %s: no product %q at %s", creator, label, s.ID())
			}
			value, typeName, err := rawProduct(owner, label)
			if err != nil {
				return err
			}
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("persist %s: encode %q: %w", creator, label, err)
			}
			if err := p.RegisterWrite(creator, label, data, typeName); err != nil {
				return fmt.Errorf("persist %s: write %q: %w", creator, label, err)
			}
		}
		return p.CommitOutput(creator, s.ID().String())
	}
}

// rawProduct reads a product value without asserting its type,
// reporting the stored type name alongside.
func rawProduct(s *phlex.Store, name string) (any, string, error) {
	h, err := phlex.GetHandle[any](s, name)
	if err != nil {
		return nil, "", err
	}
	return h.Value(), phlex.TypeName(h.Value()), nil
}
