package taxonomy

type CategoryCreatedEvent struct {
	Category *PlantCategory
}

type SubcategoryCreatedEvent struct {
	Subcategory *PlantSubcategory
}
