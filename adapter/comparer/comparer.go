// Package comparer contains the default [domain.Comparer] implementation. It
// defines a total order over stored values, used by the primary key index and
// by set membership.
package comparer

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Values of different kinds are ordered by kind first.
const (
	rankNil = iota
	rankNumber
	rankString
	rankBool
	rankDate
	rankObjectID
	rankUUID
	rankData
	rankLink
	rankUnknown
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer.
func (c *Comparer) Comparable(a, b any) bool {
	ra := c.rank(a)
	return ra != rankUnknown && ra == c.rank(b)
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a any, b any) (int, error) {
	ra, rb := c.rank(a), c.rank(b)
	if ra == rankUnknown || rb == rankUnknown {
		return 0, fmt.Errorf("cannot compare unexpected types %T and %T", a, b)
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}

	switch ra {
	case rankNil:
		return 0, nil
	case rankNumber:
		return c.compareNumbers(a, b), nil
	case rankString:
		return cmp.Compare(a.(string), b.(string)), nil
	case rankBool:
		return c.compareBool(a.(bool), b.(bool)), nil
	case rankDate:
		return a.(time.Time).Compare(b.(time.Time)), nil
	case rankObjectID:
		x, y := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:]), nil
	case rankUUID:
		x, y := a.(uuid.UUID), b.(uuid.UUID)
		return bytes.Compare(x[:], y[:]), nil
	case rankData:
		return bytes.Compare(a.([]byte), b.([]byte)), nil
	default:
		x, y := a.(domain.Link), b.(domain.Link)
		if comp := cmp.Compare(x.ObjectType, y.ObjectType); comp != 0 {
			return comp, nil
		}
		return cmp.Compare(x.Key, y.Key), nil
	}
}

func (c *Comparer) rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time:
		return rankDate
	case primitive.ObjectID:
		return rankObjectID
	case uuid.UUID:
		return rankUUID
	case []byte:
		return rankData
	case domain.Link:
		return rankLink
	}
	if _, ok := c.asNumber(v); ok {
		return rankNumber
	}
	return rankUnknown
}

// compareNumbers orders NaN below every other number.
func (c *Comparer) compareNumbers(a, b any) int {
	x, _ := c.asNumber(a)
	y, _ := c.asNumber(b)
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	// big.Float compares float64, int64 and decimals without precision loss
	return x.Cmp(y)
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

// asNumber returns a nil float and true for NaN.
func (c *Comparer) asNumber(v any) (*big.Float, bool) {
	r := new(big.Float)
	switch n := v.(type) {
	case int:
		r.SetInt64(int64(n))
	case int8:
		r.SetInt64(int64(n))
	case int16:
		r.SetInt64(int64(n))
	case int32:
		r.SetInt64(int64(n))
	case int64:
		r.SetInt64(n)
	case uint:
		r.SetUint64(uint64(n))
	case uint8:
		r.SetUint64(uint64(n))
	case uint16:
		r.SetUint64(uint64(n))
	case uint32:
		r.SetUint64(uint64(n))
	case uint64:
		r.SetUint64(n)
	case float32:
		if math.IsNaN(float64(n)) {
			return nil, true
		}
		r.SetFloat64(float64(n))
	case float64:
		if math.IsNaN(n) {
			return nil, true
		}
		r.SetFloat64(n)
	case primitive.Decimal128:
		if n.IsNaN() {
			return nil, true
		}
		if inf := n.IsInf(); inf != 0 {
			r.SetInf(inf < 0)
			return r, true
		}
		if _, ok := r.SetString(n.String()); !ok {
			return nil, false
		}
	default:
		return nil, false
	}
	return r, true
}
