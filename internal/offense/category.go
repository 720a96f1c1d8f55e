// Package offense categorizes the 300+ unique offense descriptions of the
// historical incidents dataset into semantic categories, and resolves
// category tags back into the literal offense strings the backend stores.
package offense

import "strings"

// Category is a high-level offense category for semantic searching.
type Category string

const (
	CategoryViolent     Category = "violent"
	CategoryProperty    Category = "property"
	CategoryDrug        Category = "drug"
	CategoryWeapon      Category = "weapon"
	CategoryVehicle     Category = "vehicle"
	CategorySexCrime    Category = "sex_crime"
	CategoryFraud       Category = "fraud"
	CategoryAssault     Category = "assault"
	CategoryTheft       Category = "theft"
	CategoryBurglary    Category = "burglary"
	CategoryRobbery     Category = "robbery"
	CategoryTraffic     Category = "traffic"
	CategoryPublicOrder Category = "public_order"
	CategoryDeath       Category = "death"
	CategoryAnimal      Category = "animal"
	CategoryOther       Category = "other"
)

// allCategories lists every category in declaration order.
var allCategories = []Category{
	CategoryViolent,
	CategoryProperty,
	CategoryDrug,
	CategoryWeapon,
	CategoryVehicle,
	CategorySexCrime,
	CategoryFraud,
	CategoryAssault,
	CategoryTheft,
	CategoryBurglary,
	CategoryRobbery,
	CategoryTraffic,
	CategoryPublicOrder,
	CategoryDeath,
	CategoryAnimal,
	CategoryOther,
}

// Categories returns all available offense categories.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// ParseCategory matches a tag string against the known categories,
// case-insensitively.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allCategories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// String returns the category tag.
func (c Category) String() string {
	return string(c)
}
