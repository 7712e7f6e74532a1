package kind

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of primitive value kinds a payload can carry.
// The nullable wrapper (a pointer) is never part of a Kind.
type Kind uint8

const (
	Bool Kind = iota
	Byte
	Int16
	Int32
	Int64
	Decimal
	Single
	Double
	DateTime
	DateTimeOffset
	Char
	String
	Guid
)

// Count is the number of kinds. Arrays indexed by Kind use it as length.
const Count = int(Guid) + 1

// Rune is the Go type of Char values. It exists so that a one-character
// column can be told apart from an int32 column, since rune is an alias.
type Rune rune

type info struct {
	name   string
	prefix string
	goType reflect.Type
}

var (
	decimalType  = reflect.TypeFor[decimal.Decimal]()
	dateTimeType = reflect.TypeFor[civil.DateTime]()
	timeType     = reflect.TypeFor[time.Time]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	charType     = reflect.TypeFor[Rune]()
)

// Prefixes are part of the wire format: slot names in both payload
// encodings and the generated SQL are built from them.
var infos = [Count]info{
	Bool:           {"bool", "B", reflect.TypeFor[bool]()},
	Byte:           {"byte", "Y", reflect.TypeFor[uint8]()},
	Int16:          {"int16", "S", reflect.TypeFor[int16]()},
	Int32:          {"int32", "I", reflect.TypeFor[int32]()},
	Int64:          {"int64", "L", reflect.TypeFor[int64]()},
	Decimal:        {"decimal", "M", decimalType},
	Single:         {"single", "F", reflect.TypeFor[float32]()},
	Double:         {"double", "D", reflect.TypeFor[float64]()},
	DateTime:       {"datetime", "T", dateTimeType},
	DateTimeOffset: {"datetimeoffset", "O", timeType},
	Char:           {"char", "C", charType},
	String:         {"string", "N", reflect.TypeFor[string]()},
	Guid:           {"guid", "G", uuidType},
}

// All returns every kind in declaration order.
func All() []Kind {
	kinds := make([]Kind, Count)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) String() string {
	if int(k) >= Count {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return infos[k].name
}

// Prefix returns the slot name prefix for k.
func (k Kind) Prefix() string {
	return infos[k].prefix
}

// GoType returns the canonical Go type used to carry values of kind k.
func (k Kind) GoType() reflect.Type {
	return infos[k].goType
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return int(k) < Count
}

// ByName looks a kind up by its lower-case name ("int32", "datetimeoffset", ...).
func ByName(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range infos {
		if infos[i].name == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Of normalizes t to a Kind. A single pointer layer is stripped and
// reported as nullable. Named types resolve through their underlying type,
// so an enum declared as "type Color int32" is an Int32.
func Of(t reflect.Type) (k Kind, nullable bool, ok bool) {
	if t == nil {
		return 0, false, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		nullable = true
	}
	k, ok = of(t)
	return k, nullable, ok
}

func of(t reflect.Type) (Kind, bool) {
	if t == charType {
		return Char, true
	}

	switch t.Kind() {
	case reflect.Struct:
		switch {
		case t.ConvertibleTo(decimalType):
			return Decimal, true
		case t.ConvertibleTo(dateTimeType):
			return DateTime, true
		case t.ConvertibleTo(timeType):
			return DateTimeOffset, true
		}
		return 0, false
	case reflect.Array:
		if t.ConvertibleTo(uuidType) {
			return Guid, true
		}
		return 0, false
	case reflect.Bool:
		return Bool, true
	case reflect.Uint8:
		return Byte, true
	case reflect.Int8, reflect.Int16:
		return Int16, true
	case reflect.Uint16, reflect.Int32:
		return Int32, true
	case reflect.Uint32, reflect.Int64, reflect.Int:
		return Int64, true
	case reflect.Float32:
		return Single, true
	case reflect.Float64:
		return Double, true
	case reflect.String:
		return String, true
	}
	return 0, false
}
