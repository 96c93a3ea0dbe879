package phlex

// Stage marks whether a store carries ordinary data or is a flush
// marker signaling closure of its level instance.
type Stage int

const (
	// StageProcess is an ordinary data store.
	StageProcess Stage = iota
	// StageFlush marks a flush store. Flush stores carry no products.
	StageFlush
)

// flushSource is the origin tag attached to flush stores generated by
// the framework.
const flushSource = "[inserted]"

// Store is one node of the hierarchical state tree carried through the
// graph. It holds a parent link, a level ID, the products local to
// this level, an origin tag, and a processing stage.
//
// Stores are shared immutably once published to the graph: refinement
// happens by creating continuation stores, never by mutation.
type Store struct {
	parent   *Store
	id       *LevelID
	products Products
	source   string
	stage    Stage
}

// NewRootStore creates the depth-0 store with the given origin tag and
// products.
func NewRootStore(source string, products Products) *Store {
	return &Store{
		id:       Root(),
		products: products,
		source:   source,
		stage:    StageProcess,
	}
}

// ID returns the store's level ID.
func (s *Store) ID() *LevelID { return s.id }

// Source returns the origin tag recorded at construction.
func (s *Store) Source() string { return s.source }

// LevelName returns the name of the store's level.
func (s *Store) LevelName() string { return s.id.LevelName() }

// IsFlush reports whether this is a flush marker store.
func (s *Store) IsFlush() bool { return s.stage == StageFlush }

// ParentStore returns the immediate parent, or nil for the root.
func (s *Store) ParentStore() *Store { return s.parent }

// Parent walks the parent chain to the first ancestor whose level name
// matches, or nil if none does.
func (s *Store) Parent(levelName string) *Store {
	for store := s.parent; store != nil; store = store.parent {
		if store.LevelName() == levelName {
			return store
		}
	}
	return nil
}

// StoreForProduct walks the chain starting at this store to the first
// store containing the named product. This is the lexical product
// inheritance rule: a level sees ancestor products unless shadowed.
func (s *Store) StoreForProduct(name string) *Store {
	for store := s; store != nil; store = store.parent {
		if store.products.Contains(name) {
			return store
		}
	}
	return nil
}

// ContainsProduct reports whether this store itself carries the named
// product. Ancestors are not consulted; use StoreForProduct for that.
func (s *Store) ContainsProduct(name string) bool {
	return s.products.Contains(name)
}

// ProductNames returns the names of the products local to this store.
func (s *Store) ProductNames() []string {
	return s.products.Names()
}

// MakeChild constructs a new child store whose ID extends this store's
// ID by one segment. The child's depth is the parent's depth plus one.
func (s *Store) MakeChild(number uint64, levelName, source string, products Products) *Store {
	return &Store{
		parent:   s,
		id:       s.id.MakeChild(number, levelName),
		products: products,
		source:   source,
		stage:    StageProcess,
	}
}

// MakeContinuation constructs a sibling store with the same ID and
// parent but new products: the same level in a refined state.
func (s *Store) MakeContinuation(source string, products Products) *Store {
	return &Store{
		parent:   s.parent,
		id:       s.id,
		products: products,
		source:   source,
		stage:    StageProcess,
	}
}

// MakeFlush constructs the flush marker for this store's level
// instance: same ID and parent, empty products, stage flush.
func (s *Store) MakeFlush() *Store {
	return &Store{
		parent: s.parent,
		id:     s.id,
		source: flushSource,
		stage:  StageFlush,
	}
}

// MoreDerived returns the deeper of the two stores. Ties go to b.
func MoreDerived(a, b *Store) *Store {
	if a.id.Depth() > b.id.Depth() {
		return a
	}
	return b
}
