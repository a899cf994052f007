package object

// Table owns every Instance created during one analysis run.
// IDs are assigned in creation order starting at 1; ID 0 is Nothing.
type Table struct {
	instances []*Instance
	nothing   *Instance
}

// NewTable creates an empty table holding only the Nothing instance.
func NewTable() *Table {
	nothing := &Instance{id: 0, typ: NothingType}
	return &Table{instances: []*Instance{nothing}, nothing: nothing}
}

// Nothing returns the designated "no value" instance of this table.
func (t *Table) Nothing() *Instance { return t.nothing }

// Create allocates a new instance of the given type.
func (t *Table) Create(typ TypeDescriptor) *Instance {
	inst := &Instance{id: InstanceID(len(t.instances)), typ: typ}
	t.instances = append(t.instances, inst)
	return inst
}

// CreateDirect allocates a new instance wrapping a native value.
func (t *Table) CreateDirect(typ TypeDescriptor, v any) *Instance {
	inst := t.Create(typ)
	inst.direct = v
	inst.hasDirect = true
	return inst
}

// Get looks an instance up by ID.
func (t *Table) Get(id InstanceID) (*Instance, bool) {
	if id < 0 || int(id) >= len(t.instances) {
		return nil, false
	}
	return t.instances[id], true
}

// Len returns the number of instances including Nothing.
func (t *Table) Len() int { return len(t.instances) }

// All returns the instances in creation order, Nothing excluded.
func (t *Table) All() []*Instance {
	out := make([]*Instance, len(t.instances)-1)
	copy(out, t.instances[1:])
	return out
}
