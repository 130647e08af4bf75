package ecs

// column stores the values of one component for every entity in an archetype. The length of
// values must always match the length of the archetype's entities slice.
type column struct {
	name   string
	values []any
}

func newColumn(name string) *column {
	const initialCapacity = 16
	return &column{name: name, values: make([]any, 0, initialCapacity)}
}

func (c *column) len() int {
	return len(c.values)
}

func (c *column) push(value any) {
	c.values = append(c.values, value)
}

func (c *column) get(row int) any {
	return c.values[row]
}

func (c *column) set(row int, value any) {
	c.values[row] = value
}

// remove deletes the value at row, shifting the following rows down by one so their relative
// order is kept.
func (c *column) remove(row int) {
	copy(c.values[row:], c.values[row+1:])
	c.values[len(c.values)-1] = nil // Release the reference held by the stale tail slot
	c.values = c.values[:len(c.values)-1]
}
