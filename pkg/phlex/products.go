package phlex

import (
	"fmt"
	"reflect"
)

// product is a type-erased value together with the stable name of its
// concrete type. Typed reads check the value with a type assertion; the
// type name is what a TypeMismatchError reports as the stored type.
type product struct {
	value    any
	typeName string
}

// Products is a name-to-value map local to one store. At most one
// product may exist per name; insertion order is irrelevant.
//
// Products is written only while a store is being assembled. Once the
// owning store is published to the graph it must be treated as
// immutable.
type Products struct {
	m map[string]product
}

// NewProducts returns an empty products map.
func NewProducts() Products {
	return Products{m: make(map[string]product)}
}

// typeNameOf renders a stable name for the dynamic type of v.
func typeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// TypeName renders the stable type name used for product type tags.
func TypeName(v any) string {
	return typeNameOf(v)
}

// Put inserts a named value. It returns an error if the name is
// already taken.
func (p *Products) Put(name string, value any) error {
	if p.m == nil {
		p.m = make(map[string]product)
	}
	if _, exists := p.m[name]; exists {
		return fmt.Errorf("product %q already present", name)
	}
	p.m[name] = product{value: value, typeName: typeNameOf(value)}
	return nil
}

// MustPut inserts a named value, panicking if the name is taken.
// Intended for store assembly in sources and tests.
func (p *Products) MustPut(name string, value any) {
	if err := p.Put(name, value); err != nil {
		panic("phlex: " + err.Error())
	}
}

// Contains reports whether a product with the given name exists.
func (p *Products) Contains(name string) bool {
	_, ok := p.m[name]
	return ok
}

// Names returns the product names in unspecified order.
func (p *Products) Names() []string {
	names := make([]string, 0, len(p.m))
	for name := range p.m {
		names = append(names, name)
	}
	return names
}

// Len returns the number of products.
func (p *Products) Len() int {
	return len(p.m)
}

func (p *Products) get(name string) (product, bool) {
	prod, ok := p.m[name]
	return prod, ok
}

// ProductsOf builds a products map from name-to-value pairs.
// Convenient for sources:
//
//	store.MakeChild(i, "event", "gen", phlex.ProductsOf("a", i))
func ProductsOf(pairs ...any) Products {
	if len(pairs)%2 != 0 {
		panic("phlex: ProductsOf requires name/value pairs")
	}
	p := NewProducts()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic("phlex: ProductsOf requires string names")
		}
		p.MustPut(name, pairs[i+1])
	}
	return p
}

// GetProduct reads the product with the given name from the nearest
// store in the parent chain that defines it, checking that the stored
// type is T.
//
// It fails with a MissingProductError if no store in the chain carries
// the name, and with a TypeMismatchError naming both types if the
// stored value is not a T.
func GetProduct[T any](s *Store, name string) (T, error) {
	var zero T
	owner := s.StoreForProduct(name)
	if owner == nil {
		return zero, &MissingProductError{Product: name, Level: s.ID().String()}
	}
	prod, _ := owner.products.get(name)
	v, ok := prod.value.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Product:   name,
			Requested: reflect.TypeOf(&zero).Elem().String(),
			Stored:    prod.typeName,
		}
	}
	return v, nil
}

// GetHandle reads a product like GetProduct but returns a Handle that
// also exposes the store the value was found in.
func GetHandle[T any](s *Store, name string) (Handle[T], error) {
	v, err := GetProduct[T](s, name)
	if err != nil {
		return Handle[T]{}, err
	}
	return Handle[T]{value: v, store: s.StoreForProduct(name), name: name}, nil
}

// Handle is an accessor for a product that exposes the underlying
// store alongside the value. Algorithms that need provenance (the
// level ID the product was attached at) accept a Handle instead of a
// plain value; the two binding modes interoperate on the same product.
type Handle[T any] struct {
	value T
	store *Store
	name  string
}

// Value returns the dereferenced product value.
func (h Handle[T]) Value() T { return h.value }

// Ptr returns a non-owning pointer to the value. The pointee must not
// be mutated; stores are shared immutably once published.
func (h Handle[T]) Ptr() *T { return &h.value }

// Store returns the store the product was resolved from.
func (h Handle[T]) Store() *Store { return h.store }

// ID returns the level ID of the store the product was resolved from.
func (h Handle[T]) ID() *LevelID { return h.store.ID() }

// Name returns the product name the handle was resolved for.
func (h Handle[T]) Name() string { return h.name }
