package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDScheme(t *testing.T) {
	tests := []struct {
		name    string
		scheme  IDScheme
		ref     string
		numeric string
	}{
		{"shopify gid", ShopifyIDs, "gid://shopify/Customer/123456", "123456"},
		{"custom prefix", IDScheme{CustomerPrefix: "cust_"}, "cust_1", "1"},
		{"foreign namespace falls back to last segment", ShopifyIDs, "gid://other/Customer/77", "77"},
		{"bare id", ShopifyIDs, "99", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.numeric, tt.scheme.CustomerNumericID(tt.ref))
		})
	}
}

func TestProductRefRoundTrip(t *testing.T) {
	assert.Equal(t, "gid://shopify/Product/9", ShopifyIDs.ProductRef(9))
	assert.Equal(t, "9", ShopifyIDs.ProductNumericID("gid://shopify/Product/9"))

	custom := IDScheme{CustomerPrefix: "cust_", ProductPrefix: "prod_"}
	assert.Equal(t, "prod_9", custom.ProductRef(9))
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("  Grace Hopper ")
	assert.Equal(t, "Grace", first)
	assert.Equal(t, "Hopper", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)
}
