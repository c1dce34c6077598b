package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupLayout(t *testing.T) {
	i8 := NewValue(CarrierInt, 8, 8)
	i32 := NewValue(CarrierInt, 32, 32)
	f64 := NewValue(CarrierFloat, 64, 64)

	s := NewStructGroup(i8, NewPadding(24), i32)
	assert.Equal(t, int64(64), s.BitSize())
	assert.Equal(t, int64(32), s.BitAlign())
	assert.Equal(t, "[i8x24i32]", s.String())

	u := NewUnionGroup(i32, f64)
	assert.Equal(t, int64(64), u.BitSize())
	assert.Equal(t, int64(64), u.BitAlign())
	assert.Equal(t, "[i32|f64]", u.String())

	seq := NewSequence(4, i8)
	assert.Equal(t, int64(32), seq.BitSize())
	assert.Equal(t, int64(8), seq.BitAlign())
}

func TestWithName(t *testing.T) {
	i32 := NewValue(CarrierInt, 32, 32)

	named := WithName(i32, "x")
	assert.Equal(t, "i32(x)", named.String())
	assert.Equal(t, "", i32.Name(), "the original is unchanged")

	pad := NewPadding(8)
	assert.Same(t, pad, WithName(pad, "p"))

	g := WithName(NewStructGroup(named, WithName(i32, "y")), "point")
	assert.Equal(t, "[i32(x)i32(y)](point)", g.String())
}

func TestEqualLayouts(t *testing.T) {
	a := NewStructGroup(WithName(NewValue(CarrierInt, 32, 32), "x"), NewPadding(32))
	b := NewStructGroup(WithName(NewValue(CarrierInt, 32, 32), "x"), NewPadding(32))
	c := NewStructGroup(WithName(NewValue(CarrierInt, 32, 32), "y"), NewPadding(32))

	assert.True(t, EqualLayouts(a, b))
	assert.False(t, EqualLayouts(a, c), "names are compared")
	assert.False(t, EqualLayouts(a, NewUnionGroup(a.Members...)))
	assert.False(t, EqualLayouts(a, nil))
	assert.True(t, EqualLayouts(nil, nil))
}

func TestPositionString(t *testing.T) {
	assert.Equal(t, "<no position>", NoPosition.String())
	assert.Equal(t, "foo.h:3:9", Position{Path: "foo.h", Line: 3, Col: 9}.String())
}
