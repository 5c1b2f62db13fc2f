package column

import (
	"fmt"
)

type Type int

const (
	TypeAuto Type = iota
	TypeDouble
	TypeLong
	TypeBool
	TypeString
	TypeObject
)

// ColumnType is the externally visible description of a column type. There is exactly one ColumnType value per Type,
// so callers may compare them by pointer.
type ColumnType struct {
	Type Type
	Name string
}

func (c *ColumnType) String() string {
	return c.Name
}

var (
	AutoColumnType   = &ColumnType{Type: TypeAuto, Name: "auto"}
	DoubleColumnType = &ColumnType{Type: TypeDouble, Name: "real"}
	LongColumnType   = &ColumnType{Type: TypeLong, Name: "int"}
	BoolColumnType   = &ColumnType{Type: TypeBool, Name: "bool"}
	StringColumnType = &ColumnType{Type: TypeString, Name: "str"}
	ObjectColumnType = &ColumnType{Type: TypeObject, Name: "obj"}

	// ColumnTypesByType allows lookup of the canonical ColumnType by Type.
	ColumnTypesByType = map[Type]*ColumnType{
		TypeAuto:   AutoColumnType,
		TypeDouble: DoubleColumnType,
		TypeLong:   LongColumnType,
		TypeBool:   BoolColumnType,
		TypeString: StringColumnType,
		TypeObject: ObjectColumnType,
	}
)

// ColumnType returns the canonical ColumnType for t.
func (t Type) ColumnType() *ColumnType {
	ct, ok := ColumnTypesByType[t]
	if !ok {
		panic(fmt.Sprintf("unknown column type %d", int(t)))
	}
	return ct
}

func (t Type) String() string {
	return t.ColumnType().Name
}

// ParseType maps an external type name back to its Type.
func ParseType(name string) (Type, bool) {
	for t, ct := range ColumnTypesByType {
		if ct.Name == name {
			return t, true
		}
	}
	return TypeAuto, false
}
