package catalog

// Link wires the two services so that a mutation on one side drops the
// entries it made stale on the other: product changes forget the owning
// categories (their cached product lists), category deletes and renames
// forget the affected products.
func Link(categories *CategoryService, products *ProductService) {
	categories.OnProductsChanged(products.Forget)
	products.OnCategoryChanged(categories.Forget)
}
