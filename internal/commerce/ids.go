package commerce

import (
	"strconv"
	"strings"
)

// IDScheme describes how the platform namespaces customer and product
// identifiers. The admin REST API uses bare numeric ids while the GraphQL
// APIs use prefixed references.
type IDScheme struct {
	CustomerPrefix string
	ProductPrefix  string
}

var ShopifyIDs = IDScheme{
	CustomerPrefix: "gid://shopify/Customer/",
	ProductPrefix:  "gid://shopify/Product/",
}

// CustomerNumericID strips the namespace from a customer reference. When
// the configured prefix does not match, the segment after the last "/" is
// used.
func (s IDScheme) CustomerNumericID(ref string) string {
	return stripPrefix(ref, s.CustomerPrefix)
}

func (s IDScheme) ProductNumericID(ref string) string {
	return stripPrefix(ref, s.ProductPrefix)
}

// ProductRef rebuilds the product reference for a numeric admin id.
func (s IDScheme) ProductRef(id int64) string {
	return s.ProductPrefix + strconv.FormatInt(id, 10)
}

func stripPrefix(ref, prefix string) string {
	ref = strings.TrimSpace(ref)
	if prefix != "" {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			return rest
		}
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
