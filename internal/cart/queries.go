package cart

// cartFields is the cart selection shared by every cart document.
const cartFields = `
  id
  checkoutUrl
  lines(first: 25) {
    edges {
      node {
        id
        quantity
        merchandise {
          ... on ProductVariant {
            id
            title
            product {
              title
              handle
              images(first: 1) {
                edges {
                  node {
                    url
                  }
                }
              }
            }
            price {
              amount
              currencyCode
            }
          }
        }
      }
    }
  }`

const userErrorFields = `
    userErrors {
      field
      message
    }`

const getCartQuery = `
query GetCart($cartId: ID!) {
  cart(id: $cartId) {` + cartFields + `
  }
}`

const cartCreateMutation = `
mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {` + cartFields + `
    }` + userErrorFields + `
  }
}`

const cartLinesAddMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {` + cartFields + `
    }` + userErrorFields + `
  }
}`

const cartLinesRemoveMutation = `
mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart {` + cartFields + `
    }` + userErrorFields + `
  }
}`

const cartLinesUpdateMutation = `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart {` + cartFields + `
    }` + userErrorFields + `
  }
}`
