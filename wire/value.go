package wire

import (
	"strconv"
	"time"
)

// A Value is a decoded wire value: nil, bool, float64, string, Arr, Obj,
// or one of the extended types Ref, SetRef, Time and QueryLit.
type Value = any

// Obj is a decoded JSON object
type Obj map[string]Value

// Arr is a decoded JSON array
type Arr []Value

// An Expander is a value with a custom wire representation.
//
// WireJSON returns a value composed of plain JSON-encodable values and
// possibly further Expanders, which Encode expands recursively.
type Expander interface {
	WireJSON() Value
}

// Timestamp is a transaction time: microseconds since the Unix epoch.
//
// Transaction timestamps are assigned by the server and establish a total
// order over writes.
type Timestamp int64

// Time converts the timestamp to a time.Time
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// String returns the decimal representation used in protocol headers
func (t Timestamp) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Max returns the later of two timestamps
func (t Timestamp) Max(other Timestamp) Timestamp {
	if other > t {
		return other
	}
	return t
}

// TimestampOf converts a time.Time to a Timestamp
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// A Ref identifies a stored document or a named database object.
//
// The Collection and Database parents are optional and form a chain up to a
// native root collection.
type Ref struct {
	ID         string
	Collection *Ref
	Database   *Ref
}

// Equal reports structural equality of two refs
func (r Ref) Equal(other Ref) bool {
	if r.ID != other.ID {
		return false
	}
	if !refPtrEqual(r.Collection, other.Collection) {
		return false
	}
	return refPtrEqual(r.Database, other.Database)
}

func refPtrEqual(a, b *Ref) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

// WireJSON implements Expander
func (r Ref) WireJSON() Value {
	inner := Obj{"id": r.ID}
	if r.Collection != nil {
		inner["collection"] = *r.Collection
	}
	if r.Database != nil {
		inner["database"] = *r.Database
	}
	return Obj{"@ref": inner}
}

// A SetRef identifies a server-selected set of documents.
//
// The parameters echo the query that selects the set.
type SetRef struct {
	Parameters Obj
}

// WireJSON implements Expander
func (s SetRef) WireJSON() Value {
	return Obj{"@set": s.Parameters}
}

// Time is the @ts extended wire type: an instant with nanosecond precision
type Time time.Time

// WireJSON implements Expander
func (t Time) WireJSON() Value {
	return Obj{"@ts": time.Time(t).UTC().Format(time.RFC3339Nano)}
}

// Std converts the value to a time.Time
func (t Time) Std() time.Time {
	return time.Time(t)
}

// Equal reports whether two times denote the same instant
func (t Time) Equal(other Time) bool {
	return time.Time(t).Equal(time.Time(other))
}

// QueryLit is the @query extended wire type: an opaque query literal
// (typically a stored lambda) passed through without interpretation
type QueryLit struct {
	Lambda Value
}

// WireJSON implements Expander
func (q QueryLit) WireJSON() Value {
	return Obj{"@query": q.Lambda}
}
