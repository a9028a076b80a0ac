package ini

import "slices"

// Value is either a single string or an ordered list of strings.
type Value struct {
	scalar string
	items  []string
	array  bool
}

// Scalar returns a single-string Value.
func Scalar(s string) Value {
	return Value{scalar: s}
}

// Array returns an array Value holding items in order. Array() is an
// empty array, not a missing value.
func Array(items ...string) Value {
	return Value{items: slices.Clone(items), array: true}
}

// IsArray reports whether v is the array form.
func (v Value) IsArray() bool {
	return v.array
}

// String returns the scalar content. For arrays it returns the last item,
// or "" when the array is empty.
func (v Value) String() string {
	if !v.array {
		return v.scalar
	}
	if len(v.items) == 0 {
		return ""
	}
	return v.items[len(v.items)-1]
}

// Items returns a copy of the array items. A scalar yields a one-element
// slice.
func (v Value) Items() []string {
	if !v.array {
		return []string{v.scalar}
	}
	return slices.Clone(v.items)
}

// Equal reports whether v and o have the same form and content.
func (v Value) Equal(o Value) bool {
	if v.array != o.array {
		return false
	}
	if !v.array {
		return v.scalar == o.scalar
	}
	return slices.Equal(v.items, o.items)
}

func (v Value) appendItem(item string) Value {
	if !v.array {
		return Value{items: []string{item}, array: true}
	}
	v.items = append(slices.Clip(v.items), item)
	return v
}

// Block is a named section of settings. Keys keep the order in which they
// were first assigned.
type Block struct {
	keys   []string
	values map[string]Value
}

func newBlock() *Block {
	return &Block{values: make(map[string]Value)}
}

// Get returns the value stored at key.
func (b *Block) Get(key string) (Value, bool) {
	if b == nil {
		return Value{}, false
	}
	v, ok := b.values[key]
	return v, ok
}

// Has reports whether key is set in the block.
func (b *Block) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Set stores v at key, keeping the key's original position if it exists.
func (b *Block) Set(key string, v Value) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
}

// Keys returns the keys of the block in discovery order.
func (b *Block) Keys() []string {
	if b == nil {
		return nil
	}
	return slices.Clone(b.keys)
}

// Len returns the number of keys in the block.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := newBlock()
	if b == nil {
		return c
	}
	for _, k := range b.keys {
		v := b.values[k]
		if v.array {
			v.items = slices.Clone(v.items)
		}
		c.Set(k, v)
	}
	return c
}

// Equal reports whether both blocks hold the same keys, in the same order,
// with equal values.
func (b *Block) Equal(o *Block) bool {
	if b.Len() != o.Len() {
		return false
	}
	if b == nil || o == nil {
		return true
	}
	if !slices.Equal(b.keys, o.keys) {
		return false
	}
	for _, k := range b.keys {
		if !b.values[k].Equal(o.values[k]) {
			return false
		}
	}
	return true
}

// Table is the merged content of one or more settings files: blocks in the
// order they were first declared.
type Table struct {
	names  []string
	blocks map[string]*Block
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{blocks: make(map[string]*Block)}
}

// Block returns the named block, or nil if it was never declared.
func (t *Table) Block(name string) *Block {
	return t.blocks[name]
}

// Ensure returns the named block, creating it when missing.
func (t *Table) Ensure(name string) *Block {
	if b, ok := t.blocks[name]; ok {
		return b
	}
	b := newBlock()
	t.names = append(t.names, name)
	t.blocks[name] = b
	return b
}

// Has reports whether the block exists.
func (t *Table) Has(name string) bool {
	_, ok := t.blocks[name]
	return ok
}

// Names returns block names in discovery order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Len returns the number of blocks.
func (t *Table) Len() int {
	return len(t.names)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	for _, name := range t.names {
		c.names = append(c.names, name)
		c.blocks[name] = t.blocks[name].Clone()
	}
	return c
}

// Equal reports whether both tables hold the same blocks with equal
// contents. Block order is not compared: the default block has no header
// and is always written first, so a saved table may reload with its blocks
// in a different order.
func (t *Table) Equal(o *Table) bool {
	if len(t.names) != len(o.names) {
		return false
	}
	for _, name := range t.names {
		ob, ok := o.blocks[name]
		if !ok || !t.blocks[name].Equal(ob) {
			return false
		}
	}
	return true
}
