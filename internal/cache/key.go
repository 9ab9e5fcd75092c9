package cache

import (
	"strconv"
	"strings"
)

// Key is a structured cache key: an entity kind followed by discriminants.
type Key []string

func NewKey(kind string, discriminants ...string) Key {
	k := make(Key, 0, 1+len(discriminants))
	k = append(k, kind)
	return append(k, discriminants...)
}

func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix compares element-wise, so (cart) never matches (cartography).
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

func (k Key) Equal(o Key) bool {
	return len(k) == len(o) && k.HasPrefix(o)
}

// ID is the map identity of k. The unit separator keeps (a,b) and ("a,b")
// apart for printable discriminants.
func (k Key) ID() string {
	return strings.Join(k, "\x1f")
}

func (k Key) String() string {
	return "(" + strings.Join(k, ", ") + ")"
}

const (
	KindCatalog = "catalog"
	KindCart    = "cart"
	KindOrder   = "order"
	KindRole    = "role"
	KindProfile = "profile"
)

var (
	Catalog = NewKey(KindCatalog)
	Cart    = NewKey(KindCart)
	Order   = NewKey(KindOrder)
	Role    = NewKey(KindRole)
	Profile = NewKey(KindProfile)
)

func CatalogAll() Key { return NewKey(KindCatalog, "all") }
func CatalogByCategory(c string) Key { return NewKey(KindCatalog, "byCategory", c) }
func CatalogSearch(q string) Key { return NewKey(KindCatalog, "search", q) }
func CatalogByID(id int64) Key { return NewKey(KindCatalog, "byId", strconv.FormatInt(id, 10)) }
func CartSummary() Key { return NewKey(KindCart, "summary") }
func OrderByID(id int64) Key { return NewKey(KindOrder, "byId", strconv.FormatInt(id, 10)) }
func OrdersMine() Key { return NewKey(KindOrder, "mine") }
func OrdersAll() Key { return NewKey(KindOrder, "all") }
func RoleCaller() Key { return NewKey(KindRole, "caller") }
func RoleIsAdmin() Key { return NewKey(KindRole, "isAdmin") }
func ProfileCaller() Key { return NewKey(KindProfile, "caller") }
