package shopsync

// GraphQL strings for the Admin API live here so client and reconcile code
// share one source of truth.

const searchProductsQuery = `
query SearchProducts($query: String!) {
  products(first: 5, query: $query) {
    edges {
      node {
        id
        title
      }
    }
  }
}
`

const createProductMutation = `
mutation CreateProduct($input: ProductInput!) {
  productCreate(input: $input) {
    userErrors {
      field
      message
    }
    product {
      id
      title
    }
  }
}
`

const locationsQuery = `
query { locations(first: 1) { edges { node { id } } } }
`

const createVariantsMutation = `
mutation CreateVariants($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants) {
    userErrors {
      field
      message
    }
    productVariants {
      id
      title
      sku
    }
  }
}
`

const getProductVariantsQuery = `
query GetProductVariants($id: ID!) {
  product(id: $id) {
    variants(first: 100) {
      edges {
        node {
          id
          selectedOptions {
            name
            value
          }
        }
      }
    }
  }
}
`

const deleteVariantsMutation = `
mutation DeleteVariants($productId: ID!, $variantsIds: [ID!]!) {
  productVariantsBulkDelete(productId: $productId, variantsIds: $variantsIds) {
    userErrors {
      field
      message
    }
  }
}
`

const publicationsQuery = `
query {
  publications(first: 20) {
    edges {
      node {
        id
        name
      }
    }
  }
}
`

const publishablePublishMutation = `
mutation PublishablePublish($id: ID!, $input: [PublicationInput!]!) {
  publishablePublish(id: $id, input: $input) {
    userErrors {
      field
      message
    }
  }
}
`

const reconcileVariantsQuery = `
query GetProductVariants($id: ID!) {
  product(id: $id) {
    variants(first: 100) {
      edges { node { id sku } }
    }
  }
}
`
